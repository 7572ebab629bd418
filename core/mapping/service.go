// Package mapping orchestrates the Assessment->LO and LO->PO mapping operations of a
// client: input policy, percentage/weight conversion at the wire boundary, confirmation
// of deletions and normalization of failures.
package mapping

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/outcome"
	"github.com/trezcool/masomo-obe/core/session"
)

type (
	// Backend performs the mapping requests. Implementations return core.ErrMalformedResponse
	// when a list response is not a list of records.
	Backend interface {
		ListMappings(ctx context.Context, kind outcome.Kind, courseID int) ([]outcome.Mapping, error)
		CreateMapping(ctx context.Context, nm outcome.NewMapping) (outcome.Mapping, error)
		UpdateMapping(ctx context.Context, kind outcome.Kind, id int, w outcome.ContributionWeight) (outcome.Mapping, error)
		DeleteMapping(ctx context.Context, kind outcome.Kind, id int) error
	}

	// Confirmer asks the user to approve a destructive action.
	Confirmer interface {
		Confirm(ctx context.Context, prompt string) (bool, error)
	}

	ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

	Service struct {
		backend Backend
		sess    *session.Session
		confirm Confirmer
		logger  core.Logger
	}
)

func (fn ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return fn(ctx, prompt) }

func NewService(backend Backend, sess *session.Session, confirm Confirmer, logger core.Logger) *Service {
	return &Service{
		backend: backend,
		sess:    sess,
		confirm: confirm,
		logger:  logger,
	}
}

// user is passed to the logger so entries are attributed to the logged in user.
func (svc *Service) user() session.Profile {
	p, _ := svc.sess.Profile()
	return p
}

func (svc *Service) guard(op string, kind outcome.Kind) error {
	if !svc.sess.Active() {
		return Normalize(op, ErrNoSession)
	}
	if !kind.Valid() {
		return Normalize(op, core.NewFieldError("kind", ErrInvalidKind.Error()))
	}
	return nil
}

// List returns the mappings of a kind for a course. A response that is not a list
// yields no mappings; records that do not look like mappings of that course are dropped.
func (svc *Service) List(ctx context.Context, kind outcome.Kind, courseID int) ([]outcome.Mapping, error) {
	if err := svc.guard("list", kind); err != nil {
		return nil, err
	}
	ms, err := svc.backend.ListMappings(ctx, kind, courseID)
	if err != nil {
		if errors.Is(err, core.ErrMalformedResponse) {
			svc.logger.Warn(fmt.Sprintf("listing %s mappings of course %d: malformed response, showing none", kind, courseID), err, svc.user())
			return []outcome.Mapping{}, nil
		}
		return nil, Normalize("list", err)
	}

	kept := make([]outcome.Mapping, 0, len(ms))
	for _, m := range ms {
		if wellFormed(m, kind, courseID) {
			kept = append(kept, m)
		}
	}
	if dropped := len(ms) - len(kept); dropped > 0 {
		svc.logger.Warn(fmt.Sprintf("listing %s mappings of course %d: dropped %d malformed record(s)", kind, courseID, dropped), svc.user())
	}
	return kept, nil
}

func wellFormed(m outcome.Mapping, kind outcome.Kind, courseID int) bool {
	if m.Kind != kind || m.ID <= 0 || m.SourceID <= 0 || m.TargetID <= 0 || !m.Weight.Valid() {
		return false
	}
	return m.Course == 0 || m.Course == courseID
}

func validateEndpoints(kind outcome.Kind, sourceID, targetID int, pct outcome.Percentage) error {
	var flds []core.FieldError
	if sourceID <= 0 {
		flds = append(flds, core.FieldError{Field: kind.SourceField(), Error: "this field is required"})
	}
	if targetID <= 0 {
		flds = append(flds, core.FieldError{Field: kind.TargetField(), Error: "this field is required"})
	}
	if !pct.Valid() {
		flds = append(flds, core.FieldError{Field: "percentage", Error: outcome.ErrPercentageOutOfRange.Error()})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// Create maps sourceID to targetID with a contribution percentage.
// An existing pair fails with a conflict whose message is "this mapping already exists".
func (svc *Service) Create(ctx context.Context, kind outcome.Kind, sourceID, targetID int, pct outcome.Percentage) (outcome.Mapping, error) {
	if err := svc.guard("create", kind); err != nil {
		return outcome.Mapping{}, err
	}
	if err := validateEndpoints(kind, sourceID, targetID, pct); err != nil {
		return outcome.Mapping{}, Normalize("create", err)
	}
	w, _ := outcome.PercentageToWeight(pct)

	m, err := svc.backend.CreateMapping(ctx, outcome.NewMapping{Kind: kind, SourceID: sourceID, TargetID: targetID, Weight: w})
	if err != nil {
		return outcome.Mapping{}, svc.fail("create", err)
	}
	svc.logger.Info(fmt.Sprintf("created %s", m), svc.user())
	return m, nil
}

// Update changes the contribution percentage of a mapping.
func (svc *Service) Update(ctx context.Context, kind outcome.Kind, id int, pct outcome.Percentage) (outcome.Mapping, error) {
	if err := svc.guard("update", kind); err != nil {
		return outcome.Mapping{}, err
	}
	if !pct.Valid() {
		return outcome.Mapping{}, Normalize("update", core.NewFieldError("percentage", outcome.ErrPercentageOutOfRange.Error()))
	}
	w, _ := outcome.PercentageToWeight(pct)

	m, err := svc.backend.UpdateMapping(ctx, kind, id, w)
	if err != nil {
		return outcome.Mapping{}, svc.fail("update", err)
	}
	svc.logger.Info(fmt.Sprintf("updated %s", m), svc.user())
	return m, nil
}

// Delete removes a mapping once the user confirmed it. deleted is false when the user declined,
// in which case no request is sent.
func (svc *Service) Delete(ctx context.Context, kind outcome.Kind, id int) (deleted bool, err error) {
	if err := svc.guard("delete", kind); err != nil {
		return false, err
	}
	ok, err := svc.confirmDeletion(ctx, fmt.Sprintf("Delete %s mapping #%d?", kind, id))
	if err != nil {
		return false, Normalize("delete", err)
	}
	if !ok {
		return false, nil
	}
	if err := svc.backend.DeleteMapping(ctx, kind, id); err != nil {
		return false, svc.fail("delete", err)
	}
	svc.logger.Info(fmt.Sprintf("deleted %s#%d", kind, id), svc.user())
	return true, nil
}

func (svc *Service) confirmDeletion(ctx context.Context, prompt string) (bool, error) {
	if svc.confirm == nil {
		return false, errNoConfirmation
	}
	return svc.confirm.Confirm(ctx, prompt)
}

// fail normalizes err and logs the unexpected kinds with their cause.
func (svc *Service) fail(op string, err error) error {
	nErr := Normalize(op, err)
	if e, ok := nErr.(*Error); ok && (e.Kind == KindTransport || e.Kind == KindUnknown) {
		svc.logger.Error(fmt.Sprintf("mapping %s failed: %s", op, e.Message), e.Cause, svc.user())
	}
	return nErr
}
