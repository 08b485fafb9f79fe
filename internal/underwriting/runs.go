package underwriting

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrRunNotFound is returned for an unknown request ID.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunExists is returned when a request ID already has a run.
	ErrRunExists = errors.New("run already recorded for request id")
	// ErrRunFinished is returned when a finished run would be overwritten.
	ErrRunFinished = errors.New("run already finished")
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

const (
	defaultRunListLimit = 20
	maxRunListLimit     = 100
	defaultMemoryRuns   = 500
)

// Run is the persisted history record of one underwrite request.
type Run struct {
	RequestID     string          `json:"request_id"`
	Provider      string          `json:"provider"`
	Status        RunStatus       `json:"status"`
	DocumentTypes []string        `json:"document_types"`
	Decisions     []string        `json:"decisions"`
	Result        json.RawMessage `json:"result,omitempty"`
	ResultSHA256  string          `json:"result_sha256,omitempty"`
	Error         string          `json:"error,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// RunOutcome is written when a run ends.
type RunOutcome struct {
	Status       RunStatus
	Decisions    []string
	Result       []byte
	ResultSHA256 string
	Error        string
	CompletedAt  time.Time
}

// RunRepo persists run history. Start rejects a request ID that already has
// a run, and Finish only updates a run that is still running.
type RunRepo interface {
	Start(ctx context.Context, run Run) error
	Finish(ctx context.Context, requestID string, outcome RunOutcome) error
	Get(ctx context.Context, requestID string) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRunListLimit
	}
	if limit > maxRunListLimit {
		return maxRunListLimit
	}
	return limit
}

// MemoryRunRepo keeps the newest runs in process memory and is safe for
// concurrent use. Once MaxRuns is exceeded the oldest run is evicted.
type MemoryRunRepo struct {
	MaxRuns int

	mu    sync.RWMutex
	byID  map[string]Run
	order []string
}

func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{MaxRuns: defaultMemoryRuns, byID: make(map[string]Run)}
}

func (r *MemoryRunRepo) Start(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[run.RequestID]; ok {
		return ErrRunExists
	}
	r.byID[run.RequestID] = run
	r.order = append(r.order, run.RequestID)

	limit := r.MaxRuns
	if limit <= 0 {
		limit = defaultMemoryRuns
	}
	for len(r.order) > limit {
		delete(r.byID, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

func (r *MemoryRunRepo) Finish(ctx context.Context, requestID string, outcome RunOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[requestID]
	if !ok {
		return ErrRunNotFound
	}
	if run.Status != RunRunning {
		return ErrRunFinished
	}
	completed := outcome.CompletedAt
	run.Status = outcome.Status
	run.Decisions = outcome.Decisions
	run.Result = append(json.RawMessage(nil), outcome.Result...)
	run.ResultSHA256 = outcome.ResultSHA256
	run.Error = outcome.Error
	run.CompletedAt = &completed
	r.byID[requestID] = run
	return nil
}

// Len reports how many runs are held.
func (r *MemoryRunRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryRunRepo) Get(ctx context.Context, requestID string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[requestID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

// List returns the newest runs first.
func (r *MemoryRunRepo) List(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Run, 0, len(r.byID))
	for _, run := range r.byID {
		run.Result = nil
		out = append(out, run)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
