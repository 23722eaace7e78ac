package admindir

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sdboyer/constext"
)

// SignalContext returns a context cancelled either by parent's own
// cancellation or by SIGTERM/SIGINT, merged via constext.Cons the same way
// the teacher merges a caller context with its subprocess semaphore context
// in gps/cmd.go - here the two "parents" are the caller's context and a
// context this function cancels itself on signal receipt.
//
// The returned cancel func both releases the signal.Notify registration and
// cancels the merged context; callers must defer it.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	sigCtx, sigCancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case <-ch:
			sigCancel()
		case <-sigCtx.Done():
		}
	}()

	merged, _ := constext.Cons(parent, sigCtx)
	cancel := func() {
		signal.Stop(ch)
		sigCancel()
	}
	return merged, cancel
}

// AbortRequested reports whether ctx has been cancelled, the single check
// spec §5 calls for "between scheduler ticks and between maintainer-script
// invocations" - the current operation is always allowed to finish (no
// tearing) before this is consulted again.
func AbortRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
