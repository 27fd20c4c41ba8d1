package jobs

import (
	"context"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

// ItemResult records the outcome for one application processed by a job run.
type ItemResult struct {
	ApplicationID common.UUID `json:"application_id"`
	Status        string      `json:"status"`
	Reason        string      `json:"reason,omitempty"`
}

// Result summarizes one job run.
type Result struct {
	Job        string       `json:"job"`
	ExecutedAt time.Time    `json:"executed_at"`
	Processed  int          `json:"processed"`
	Skipped    int          `json:"skipped"`
	Errors     int          `json:"errors"`
	Items      []ItemResult `json:"items"`
}

// Job is one runnable background task.
type Job func(ctx context.Context) (*Result, error)

// Registry holds the named jobs. It is populated once at startup and read
// by both the cron runner and the manual-trigger endpoint.
type Registry struct {
	ids      []string
	jobs     map[string]Job
	observer func(job, outcome string)
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Observe registers a callback invoked after every job run with the run
// outcome ("ok", "partial" or "error").
func (r *Registry) Observe(fn func(job, outcome string)) {
	r.observer = fn
}

func (r *Registry) Register(id string, job Job) {
	if _, exists := r.jobs[id]; !exists {
		r.ids = append(r.ids, id)
	}
	r.jobs[id] = job
}

func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) Trigger(ctx context.Context, id string) (*Result, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "unknown job: "+id, nil)
	}
	result, err := job(ctx)
	if r.observer != nil {
		r.observer(id, outcomeOf(result, err))
	}
	return result, err
}

func outcomeOf(result *Result, err error) string {
	switch {
	case err != nil:
		return "error"
	case result != nil && result.Errors > 0:
		return "partial"
	default:
		return "ok"
	}
}
