package device

import (
	"context"
	"sync"

	"github.com/born-ml/ndbuf/internal/tensor"
)

// Transfer is a handle on an issued host/device copy.
//
// Backends create transfers with NewTransfer and finish them with Complete.
// A Mirror attaches its coherence update to the transfer; the update is applied
// the first time Wait observes a successful completion.
type Transfer struct {
	op       string
	done     chan struct{}
	complete sync.Once
	err      error

	commit sync.Once
	apply  func()
}

// NewTransfer returns a pending transfer for the named operation.
func NewTransfer(op string) *Transfer {
	return &Transfer{op: op, done: make(chan struct{})}
}

// completed returns a transfer that has already finished with err.
func completed(op string, err error) *Transfer {
	t := NewTransfer(op)
	t.Complete(err)
	return t
}

// Complete marks the copy finished. Only the first call has any effect.
func (t *Transfer) Complete(err error) {
	t.complete.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done returns a channel that is closed when the copy finishes.
func (t *Transfer) Done() <-chan struct{} { return t.done }

// Wait blocks until the copy finishes or ctx is done. Cancelling ctx abandons
// the wait only; the copy itself keeps running and a later Wait can still
// observe it. A failed copy is reported as tensor.ErrTransfer.
func (t *Transfer) Wait(ctx context.Context) error {
	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if t.err != nil {
		return tensor.WrapError(t.op, tensor.ErrTransfer, t.err)
	}
	t.commit.Do(func() {
		if t.apply != nil {
			t.apply()
		}
	})
	return nil
}
