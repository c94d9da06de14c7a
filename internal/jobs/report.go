// Package jobs holds the scheduled batch jobs. Each job processes records one
// at a time, isolates per-record failures and returns a Report.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"villa/internal/metrics"
)

type Outcome string

const (
	OutcomeUpdated    Outcome = "updated"
	OutcomeNotified   Outcome = "notified"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeError      Outcome = "error"
	OutcomeEmailError Outcome = "email_error"
)

type ItemResult struct {
	ReservationID int64   `json:"reservation_id"`
	Number        string  `json:"reservation_number"`
	Outcome       Outcome `json:"outcome"`
	Detail        string  `json:"detail,omitempty"`
	Error         string  `json:"error,omitempty"`
}

type Report struct {
	Job       string       `json:"job"`
	Processed int          `json:"processed"`
	Notified  int          `json:"notified"`
	Errors    int          `json:"errors"`
	Results   []ItemResult `json:"results"`
}

func newReport(job string) *Report {
	return &Report{Job: job, Results: []ItemResult{}}
}

func (r *Report) add(item ItemResult) {
	r.Processed++
	switch item.Outcome {
	case OutcomeNotified:
		r.Notified++
	case OutcomeError, OutcomeEmailError:
		r.Errors++
	}
	r.Results = append(r.Results, item)
	metrics.IncJobItem(r.Job, string(item.Outcome))
}

// Job is one scheduled batch. now is the trigger time; jobs derive "today"
// from it in the property's zone.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) (*Report, error)
}

// Registry looks jobs up by their trigger name.
type Registry struct {
	jobs map[string]Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
	return r
}

func (r *Registry) Get(name string) (Job, bool) {
	j, ok := r.jobs[name]
	return j, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a job by name.
func (r *Registry) Run(ctx context.Context, name string, now time.Time) (*Report, error) {
	j, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return j.Run(ctx, now)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
