package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serverpulse/agent/internal/observability/log"
)

func TestGroup_PanicBecomesJoinError(t *testing.T) {
	group, _ := NewGroup(context.Background(), log.Nop())

	group.Go("report", func(ctx context.Context) error {
		panic("index out of range")
	})

	err := group.Wait()
	require.Error(t, err)

	var join *JoinError
	require.True(t, errors.As(err, &join))
	assert.Equal(t, "report", join.Task)
	assert.Equal(t, "index out of range", join.Panic)
	assert.NotEmpty(t, join.Stack)
	assert.Equal(t, "task report panicked: index out of range", join.Error())
}

func TestGroup_ErrorsPropagateUnchanged(t *testing.T) {
	sentinel := errors.New("task failed")
	group, _ := NewGroup(context.Background(), log.Nop())

	group.Go("commands", func(ctx context.Context) error {
		return sentinel
	})

	assert.ErrorIs(t, group.Wait(), sentinel)
}

func TestGroup_FirstFailureCancelsSiblings(t *testing.T) {
	group, _ := NewGroup(context.Background(), log.Nop())
	released := make(chan struct{})

	group.Go("failing", func(ctx context.Context) error {
		return errors.New("early exit")
	})
	group.Go("waiting", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			close(released)
			return nil
		case <-time.After(5 * time.Second):
			t.Error("sibling was not cancelled")
			return nil
		}
	})

	err := group.Wait()
	require.Error(t, err)

	select {
	case <-released:
	default:
		t.Fatal("waiting task did not observe cancellation")
	}
}

func TestGroup_NoTasks(t *testing.T) {
	group, _ := NewGroup(context.Background(), log.Nop())
	assert.NoError(t, group.Wait())
}
