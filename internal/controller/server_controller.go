package controller

import (
	"context"

	"scanner/internal/database"
)

// Pinger is any optional dependency that can report its health
type Pinger func(ctx context.Context) error

type ServerController interface {
	// Health checks the database and every optional dependency. The report
	// is healthy when the database is reachable.
	Health(ctx context.Context) HealthReport
}

type HealthReport struct {
	Healthy    bool            `json:"healthy"`
	Components map[string]bool `json:"components"`
}

type serverController struct {
	db       database.Database
	optional map[string]Pinger
}

// NewServer builds the health controller. optional is keyed by component
// name, for example "cache" or "rabbit".
func NewServer(db database.Database, optional map[string]Pinger) ServerController {
	return &serverController{
		db:       db,
		optional: optional,
	}
}

func (sc *serverController) Health(ctx context.Context) HealthReport {
	dbErr := sc.db.Health()

	report := HealthReport{
		Healthy:    dbErr == nil,
		Components: map[string]bool{"database": dbErr == nil},
	}

	for name, ping := range sc.optional {
		report.Components[name] = ping(ctx) == nil
	}

	return report
}
