package health

import (
	"context"
	"database/sql"
	"time"

	"tender-evaluator/internal/shared/storage/db"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB        Pinger
	StoreType string
	// Workflows reports live per-user controllers; nil skips the field.
	Workflows func() int
	Timeout   time.Duration
}

// Report is the /health payload.
type Report struct {
	OK        bool              `json:"ok"`
	Checks    map[string]string `json:"checks"`
	Workflows *int              `json:"workflows,omitempty"`
	Pool      map[string]any    `json:"pool,omitempty"`
}

// NewService constructs a new health service.
func NewService(db Pinger, storeType string, workflows func() int) *Service {
	return &Service{DB: db, StoreType: storeType, Workflows: workflows, Timeout: 2 * time.Second}
}

// Status runs the checks. A missing database counts as "memory", not a failure.
func (s *Service) Status(ctx context.Context) Report {
	r := Report{OK: true, Checks: map[string]string{}}
	if s == nil {
		return r
	}
	if s.DB == nil {
		r.Checks["database"] = "memory"
	} else {
		timeout := s.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			r.OK = false
			r.Checks["database"] = "unreachable"
		} else {
			r.Checks["database"] = "ok"
		}
		if pool, ok := s.DB.(*sql.DB); ok {
			r.Pool = db.PoolStats(pool)
		}
	}
	if s.StoreType != "" {
		r.Checks["object_store"] = s.StoreType
	}
	if s.Workflows != nil {
		n := s.Workflows()
		r.Workflows = &n
	}
	return r
}
