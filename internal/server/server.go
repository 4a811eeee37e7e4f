package server

import (
	"fmt"
	"net/http"
	"time"

	"scanner/internal/config"
	"scanner/internal/controller"
)

// RequestRecorder observes served requests. pkg/metrics implements it.
type RequestRecorder interface {
	HTTPRequest(route, method, status string, d time.Duration)
}

type Server struct {
	sc       controller.ServerController
	pc       controller.PresenceController
	metrics  http.Handler
	recorder RequestRecorder
	config   config.HTTPConfig
}

// New builds the read-only status API. metrics and recorder may be nil.
func New(cfg config.HTTPConfig, sc controller.ServerController, pc controller.PresenceController, metrics http.Handler, recorder RequestRecorder) *http.Server {
	server := Server{
		sc:       sc,
		pc:       pc,
		metrics:  metrics,
		recorder: recorder,
		config:   cfg,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%v", cfg.Port),
		Handler:      server.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
