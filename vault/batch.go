package vault

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Mavahu/opacity-go/metadata"
)

// ItemError is the failure of one item in a batch operation.
type ItemError struct {
	Item metadata.ItemRef
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Item.Kind, e.Item.Name, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// BatchResult reports the outcome of every item of a batch operation. One
// failing item never aborts its siblings. Safe for concurrent use.
type BatchResult struct {
	mu        sync.Mutex
	Succeeded []metadata.ItemRef
	Skipped   []metadata.ItemRef
	Failed    []*ItemError
}

func (r *BatchResult) succeed(item metadata.ItemRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Succeeded = append(r.Succeeded, item)
}

func (r *BatchResult) skip(item metadata.ItemRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, item)
}

func (r *BatchResult) fail(item metadata.ItemRef, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, &ItemError{Item: item, Err: err})
}

// OK reports whether no item failed.
func (r *BatchResult) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failed) == 0
}

// Err joins the item failures, or returns nil.
func (r *BatchResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}
