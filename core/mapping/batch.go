package mapping

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/outcome"
)

type Op int

const (
	OpCreate Op = iota + 1
	OpUpdate
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Edit is one change of a bulk mapping edit.
// ID is used by updates and deletes, SourceID and TargetID by creates.
type Edit struct {
	Op         Op
	Kind       outcome.Kind
	ID         int
	SourceID   int
	TargetID   int
	Percentage outcome.Percentage
}

func (e Edit) String() string {
	switch e.Op {
	case OpCreate:
		return fmt.Sprintf("create %s %d->%d (%v%%)", e.Kind, e.SourceID, e.TargetID, e.Percentage)
	case OpUpdate:
		return fmt.Sprintf("update %s#%d (%v%%)", e.Kind, e.ID, e.Percentage)
	}
	return fmt.Sprintf("%s %s#%d", e.Op, e.Kind, e.ID)
}

// Apply runs every edit as its own request and keeps going past failures.
// Deletions are confirmed once for the whole batch; when declined they fail with ErrDeclined
// and the other edits are still applied.
func (svc *Service) Apply(ctx context.Context, edits []Edit) core.BatchResult[Edit] {
	var res core.BatchResult[Edit]
	if len(edits) == 0 {
		return res
	}
	if !svc.sess.Active() {
		err := Normalize("apply", ErrNoSession)
		for _, e := range edits {
			res.Record(e, err)
		}
		return res
	}

	deleteErr := svc.confirmBatchDeletion(ctx, edits)
	for _, e := range edits {
		if err := ctx.Err(); err != nil {
			res.Record(e, Normalize(e.Op.String(), err))
			continue
		}
		res.Record(e, svc.apply(ctx, e, deleteErr))
	}

	if !res.OK() {
		svc.logger.Warn(fmt.Sprintf("bulk mapping edit: %d of %d failed", len(res.Failed), res.Total()), svc.user())
	}
	return res
}

func (svc *Service) apply(ctx context.Context, e Edit, deleteErr error) error {
	var err error
	switch e.Op {
	case OpCreate:
		_, err = svc.Create(ctx, e.Kind, e.SourceID, e.TargetID, e.Percentage)
	case OpUpdate:
		_, err = svc.Update(ctx, e.Kind, e.ID, e.Percentage)
	case OpDelete:
		if deleteErr != nil {
			return deleteErr
		}
		if err = svc.guard("delete", e.Kind); err != nil {
			return err
		}
		if err = svc.backend.DeleteMapping(ctx, e.Kind, e.ID); err != nil {
			return svc.fail("delete", err)
		}
		svc.logger.Info(fmt.Sprintf("deleted %s#%d", e.Kind, e.ID), svc.user())
	default:
		err = Normalize(e.Op.String(), core.NewFieldError("op", "unknown operation"))
	}
	return err
}

// confirmBatchDeletion returns the error every deletion of the batch fails with, or nil when approved.
func (svc *Service) confirmBatchDeletion(ctx context.Context, edits []Edit) error {
	var n int
	for _, e := range edits {
		if e.Op == OpDelete {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	ok, err := svc.confirmDeletion(ctx, fmt.Sprintf("Delete %d mapping(s)?", n))
	if err != nil {
		return Normalize("delete", err)
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}
