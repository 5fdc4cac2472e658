package cron

import (
	"context"
	"fmt"
)

// Job is one maintenance task of the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in run order, keyed by unique name.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry registers jobs in order, skipping nils. Duplicate names panic
// since they can only come from wiring mistakes.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Only narrows the registry to the named jobs. Unknown names are an error.
func (r *Registry) Only(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := map[string]bool{}
	for _, name := range names {
		if _, ok := r.names[name]; !ok {
			return nil, fmt.Errorf("unknown job %q", name)
		}
		want[name] = true
	}
	out := &Registry{names: map[string]struct{}{}}
	for _, job := range r.jobs {
		if want[job.Name()] {
			_ = out.Register(job)
		}
	}
	return out, nil
}
