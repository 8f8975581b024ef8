package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"academic_outreach/internal/domain/ledger"
	"academic_outreach/internal/domain/organization"
	idb "academic_outreach/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// AdmissionService keeps at most one unresolved outreach per organization.
type AdmissionService struct {
	slots      organization.SlotRepository
	ledger     ledger.Repository
	staleAfter time.Duration
	now        func() time.Time
	log        *logrus.Entry
}

func NewAdmissionService(slots organization.SlotRepository, lr ledger.Repository, staleAfterDays int, log *logrus.Entry) *AdmissionService {
	return &AdmissionService{
		slots:      slots,
		ledger:     lr,
		staleAfter: time.Duration(staleAfterDays) * day,
		now:        time.Now,
		log:        log,
	}
}

// WithClock replaces the time source.
func (s *AdmissionService) WithClock(now func() time.Time) *AdmissionService {
	s.now = now
	return s
}

// CanAdmit reports whether a new subject of org may be contacted. A latest
// subject left unanswered past the stale threshold is promoted to
// stale_no_response as a side effect.
func (s *AdmissionService) CanAdmit(ctx context.Context, org string) (bool, error) {
	latestID, ok, err := s.slots.Latest(ctx, org)
	if err != nil {
		return false, fmt.Errorf("failed to read slots of %q: %w", org, err)
	}
	if !ok {
		return true, nil
	}

	log := s.log.WithFields(logrus.Fields{"organization": org, "latest_subject_id": latestID})
	e, err := s.ledger.Get(ctx, latestID)
	if err != nil {
		if errors.Is(err, idb.ErrEntryNotFound) {
			log.Warn("Latest admitted subject has no ledger entry, holding organization")
			return false, nil
		}
		return false, fmt.Errorf("failed to read ledger entry %d: %w", latestID, err)
	}

	switch {
	case e.ResponseStatus.Resolved(), e.ResponseStatus == ledger.StatusStaleNoResponse:
		return true, nil
	case e.ResponseStatus == ledger.StatusNoAnswer:
		sentAt, ok := e.SendTime()
		if !ok || s.now().Sub(sentAt) < s.staleAfter {
			return false, nil
		}
		if err := s.ledger.SetResponseStatus(ctx, latestID, ledger.StatusStaleNoResponse); err != nil {
			return false, fmt.Errorf("failed to mark subject %d stale: %w", latestID, err)
		}
		log.Info("Latest subject marked stale, organization open again")
		return true, nil
	default:
		// out_of_office and anything unknown keep the slot.
		return false, nil
	}
}

// Admit appends subjectID to the slots of org.
func (s *AdmissionService) Admit(ctx context.Context, org string, subjectID int64) error {
	if err := s.slots.Append(ctx, org, subjectID); err != nil {
		return fmt.Errorf("failed to admit subject %d into %q: %w", subjectID, org, err)
	}
	return nil
}

// Admitted reports whether subjectID already holds a slot of org.
func (s *AdmissionService) Admitted(ctx context.Context, org string, subjectID int64) (bool, error) {
	return s.slots.Contains(ctx, org, subjectID)
}
