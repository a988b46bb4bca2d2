package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRecordsOutcome(t *testing.T) {
	s := New(nil)
	calls := 0
	s.Register(Job{Name: "b", Interval: time.Hour, Fn: func(context.Context) error {
		calls++
		return nil
	}})
	s.Register(Job{Name: "a", Interval: time.Hour, Fn: func(context.Context) error {
		return errors.New("boom")
	}})

	require.NoError(t, s.Run(context.Background(), "a"))
	require.NoError(t, s.Run(context.Background(), "b"))
	assert.Error(t, s.Run(context.Background(), "missing"))

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Name)
	assert.Equal(t, StatusFailed, items[0].Status)
	assert.Equal(t, "boom", items[0].Message)
	assert.Equal(t, StatusOK, items[1].Status)
	assert.NotNil(t, items[1].LastRunAt)
	assert.Equal(t, 1, calls)
}

func TestStartTicks(t *testing.T) {
	s := New(nil)
	done := make(chan struct{}, 1)
	s.Register(Job{Name: "tick", Interval: 10 * time.Millisecond, Fn: func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
}
