package core

import (
	"fmt"
	"strings"
)

// BatchFailure pairs an item of a best-effort batch with the error it failed with.
type BatchFailure[T any] struct {
	Item T
	Err  error
}

// BatchResult is the outcome of a best-effort batch: each item is attempted
// regardless of the others and ends up in exactly one of the two lists.
type BatchResult[T any] struct {
	Succeeded []T
	Failed    []BatchFailure[T]
}

func (r *BatchResult[T]) Record(item T, err error) {
	if err != nil {
		r.Failed = append(r.Failed, BatchFailure[T]{Item: item, Err: err})
		return
	}
	r.Succeeded = append(r.Succeeded, item)
}

func (r BatchResult[T]) OK() bool { return len(r.Failed) == 0 }

func (r BatchResult[T]) Total() int { return len(r.Succeeded) + len(r.Failed) }

// Err summarizes the failures, or returns nil when every item succeeded.
func (r BatchResult[T]) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		msgs = append(msgs, fmt.Sprintf("%v: %v", f.Item, f.Err))
	}
	return fmt.Errorf("%d of %d failed: %s", len(r.Failed), r.Total(), strings.Join(msgs, "; "))
}
