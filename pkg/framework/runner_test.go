package framework

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

var errLinkDown = errors.New("link down")

func TestRunnerStopsAllOnFirstExit(t *testing.T) {
	r := NewRunner()
	r.Go(
		NamedRun("bus", RunnableFunc(func(ctx context.Context) error {
			return errLinkDown
		})),
		NamedRun("server", RunnableFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
	)
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errLinkDown))
	require.Equal(t, "bus: link down", err.Error())
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner()
	r.Go(RunnableFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Stop()
	require.NoError(t, r.Wait())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(errors.New("a"), errLinkDown)
	require.Equal(t, "multiple errors:\n  a\n  link down", errs.Error())
	require.True(t, errors.Is(errs.Aggregate(), errLinkDown))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocked := make(chan struct{})
	closer := closerFunc(func() error {
		select {
		case <-blocked:
		default:
			close(blocked)
		}
		return nil
	})
	cancel()
	err := CloseOnCancel(ctx, closer, func() error {
		<-blocked
		return io.EOF
	})
	require.Equal(t, context.Canceled, err)
}
