package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(_ context.Context) error {
	j.runs.Add(1)
	return j.err
}

type panickyJob struct{}

func (panickyJob) Name() string                { return "panicky" }
func (panickyJob) Run(_ context.Context) error { panic("boom") }

func TestAddJobValidatesSpec(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "refresh"}

	require.NoError(t, s.AddJob("@daily", job))
	require.NoError(t, s.AddJob("0 6 * * 1-5", job))

	err := s.AddJob("not a cron spec", job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh")
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "refresh"}

	s.RunNow(job)
	s.RunNow(job)
	assert.Equal(t, int64(2), job.runs.Load())
}

func TestRunNowSwallowsErrors(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "refresh", err: errors.New("no data")}

	s.RunNow(job)
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestRunNowRecoversPanics(t *testing.T) {
	s := New(zerolog.Nop())
	assert.NotPanics(t, func() { s.RunNow(panickyJob{}) })
}

func TestStartStopIdempotent(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@hourly", &countingJob{name: "refresh"}))

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
