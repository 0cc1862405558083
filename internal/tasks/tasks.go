// Package tasks runs named background units of work under a shared
// error group and turns goroutine panics into errors the supervising
// caller can join on.
package tasks

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/serverpulse/agent/internal/observability/log"
)

// JoinError reports that a spawned task terminated abnormally instead
// of returning. It is only produced for panics; a task that returns an
// error propagates that error unchanged.
type JoinError struct {
	Task  string
	Panic any
	Stack []byte
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Panic)
}

// Group supervises a set of named tasks. The first failure cancels the
// group context shared by all tasks.
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	logger log.Log
}

// NewGroup returns a group bound to ctx and the context tasks should
// run under.
func NewGroup(ctx context.Context, logger log.Log) (*Group, context.Context) {
	eg, egCtx := errgroup.WithContext(ctx)
	return &Group{eg: eg, ctx: egCtx, logger: logger}, egCtx
}

// Go spawns fn as a supervised task. A panic inside fn is recovered and
// surfaces from Wait as a *JoinError naming the task.
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &JoinError{Task: name, Panic: r, Stack: debug.Stack()}
				g.logger.Error("task panicked",
					log.String("task", name),
					log.Any("panic", r))
			}
		}()

		g.logger.Debug("task started", log.String("task", name))
		err = fn(g.ctx)
		g.logger.Debug("task finished", log.String("task", name), log.Error(err))
		return err
	})
}

// Wait blocks until every task has returned and yields the first error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}
