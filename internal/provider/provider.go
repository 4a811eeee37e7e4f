// Package provider defines the status query the scanner polls
package provider

import (
	"context"
	"errors"

	"scanner/internal/model"
)

// ErrUnavailable marks any failed status query: network errors, timeouts and
// malformed responses alike. Callers treat it as transient.
var ErrUnavailable = errors.New("server status unavailable")

// Provider queries a server for its online count and roster sample
type Provider interface {
	Query(ctx context.Context) (model.Sample, error)
}
