package health

import (
	"context"
	"time"

	"underwriting-backend/internal/shared/util"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports liveness, including the run-history database when one is configured.
type Service struct {
	DB Pinger
}

// NewService constructs a health service. db may be nil.
func NewService(db Pinger) *Service {
	return &Service{DB: db}
}

// Status returns the health payload and whether every dependency is reachable.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	if s == nil || s.DB == nil {
		return map[string]any{"ok": true}, true
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		return map[string]any{"ok": false, "database": util.SanitizeError(err)}, false
	}
	return map[string]any{"ok": true}, true
}
