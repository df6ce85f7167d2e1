package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pharmastock/pharmastock-backend/pkg/config"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledWithoutAddr(t *testing.T) {
	l, err := New(context.Background(), &config.RedisConfig{}, logger.Nop())
	require.NoError(t, err)

	assert.False(t, l.Enabled())
	assert.Equal(t, "disabled", l.Health(context.Background())["status"])
	assert.NoError(t, l.Close())
}

func TestRunExclusive_DisabledAlwaysRuns(t *testing.T) {
	l, err := New(context.Background(), &config.RedisConfig{}, nil)
	require.NoError(t, err)

	calls := 0
	err = l.RunExclusive(context.Background(), "urgency-recompute", time.Minute, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunExclusive_PropagatesError(t *testing.T) {
	var l *Locker
	boom := errors.New("boom")

	err := l.RunExclusive(context.Background(), "k", time.Minute, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
