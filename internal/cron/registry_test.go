package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	jobA, jobB := &stubJob{name: "a"}, &stubJob{name: "b"}
	registry := NewRegistry(jobA, nil)
	require.NoError(t, registry.Register(jobB))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "menu-warm"})
	assert.Error(t, registry.Register(&stubJob{name: "menu-warm"}))
	assert.Panics(t, func() { NewRegistry(&stubJob{name: "x"}, &stubJob{name: "x"}) })
}

func TestRegistryOnly(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "b"}, &stubJob{name: "c"})

	narrowed, err := registry.Only("c", "a")
	require.NoError(t, err)
	names := []string{}
	for _, job := range narrowed.Jobs() {
		names = append(names, job.Name())
	}
	assert.Equal(t, []string{"a", "c"}, names)

	_, err = registry.Only("missing")
	assert.Error(t, err)

	all, err := registry.Only()
	require.NoError(t, err)
	assert.Len(t, all.Jobs(), 3)
}
