package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRunIsDailyAtConfiguredTime(t *testing.T) {
	tz, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	s := New(tz, "01:30", time.Minute, func(context.Context) error { return nil })
	require.NoError(t, s.Start())
	defer s.Stop()

	next := s.NextRun().In(tz)
	assert.Equal(t, 1, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(25*time.Hour)))
}

func TestStartRejectsBadTime(t *testing.T) {
	s := New(time.UTC, "noon", time.Minute, func(context.Context) error { return nil })
	assert.Error(t, s.Start())
}
