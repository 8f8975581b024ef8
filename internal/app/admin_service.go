package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"academic_outreach/internal/domain/ledger"
	"academic_outreach/internal/domain/subject"
	idb "academic_outreach/internal/infra/database"
)

var ErrSubjectAlreadyExists = fmt.Errorf("subject with this id or email already exists")

// SubjectStatus is the combined view of a subject and its ledger entry.
type SubjectStatus struct {
	Subject *subject.Subject
	Entry   *ledger.Entry // never nil; a fresh entry when nothing was recorded
}

// Format renders the status as plain text.
func (st *SubjectStatus) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s (%s)\n", st.Subject.ID, st.Subject.Name, st.Subject.Organization)
	fmt.Fprintf(&b, "email: %s\n", st.Subject.Email)
	fmt.Fprintf(&b, "response: %s\n", st.Entry.ResponseStatus)

	if sentAt, ok := st.Entry.SendTime(); ok {
		fmt.Fprintf(&b, "initial: sent %s from %s\n", sentAt.Format(time.DateTime), st.Entry.FromAccount.String)
	} else {
		stages := make([]string, 0, 4)
		for _, stage := range []ledger.Stage{ledger.StageGathering, ledger.StageFiltering, ledger.StageHTML, ledger.StageCV} {
			if st.Entry.StageDone(stage) {
				stages = append(stages, string(stage))
			}
		}
		fmt.Fprintf(&b, "initial: not sent (done: %s)\n", strings.Join(stages, ", "))
	}

	for k := 1; k <= ledger.MaxReminders; k++ {
		r := st.Entry.Reminders[k-1]
		switch {
		case r.IsSent():
			fmt.Fprintf(&b, "reminder %d: sent after %d days\n", k, r.IntervalDays.Int64)
		case r.Sent.Valid:
			fmt.Fprintf(&b, "reminder %d: not due\n", k)
		default:
			fmt.Fprintf(&b, "reminder %d: -\n", k)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Overview aggregates the ledger of a dataset.
type Overview struct {
	Subjects      int
	Contacted     int
	ByStatus      map[ledger.ResponseStatus]int
	RemindersSent [ledger.MaxReminders]int
}

// Format renders the overview as plain text.
func (o *Overview) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "subjects: %d, contacted: %d\n", o.Subjects, o.Contacted)
	for k, n := range o.RemindersSent {
		fmt.Fprintf(&b, "reminder %d sent: %d\n", k+1, n)
	}
	for _, status := range []ledger.ResponseStatus{
		ledger.StatusNoAnswer, ledger.StatusPositive, ledger.StatusNegative, ledger.StatusOutOfOffice,
		ledger.StatusFollowUpNeeded, ledger.StatusDoNotContact, ledger.StatusStaleNoResponse,
	} {
		if n := o.ByStatus[status]; n > 0 {
			fmt.Fprintf(&b, "%s: %d\n", status, n)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// AdminService implements the manual operations on subjects and the ledger.
type AdminService struct {
	subjects        subject.Repository
	ledger          ledger.Repository
	adminTelegramID int64
}

func NewAdminService(sr subject.Repository, lr ledger.Repository, adminID int64) *AdminService {
	return &AdminService{
		subjects:        sr,
		ledger:          lr,
		adminTelegramID: adminID,
	}
}

// AdminID is the identifier accepted as performing admin.
func (s *AdminService) AdminID() int64 {
	return s.adminTelegramID
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// Status returns the subject together with its ledger entry.
func (s *AdminService) Status(ctx context.Context, performingAdminID, subjectID int64) (*SubjectStatus, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	subj, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	entry, err := s.ledger.Get(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, idb.ErrEntryNotFound) {
			return nil, fmt.Errorf("failed to get ledger entry: %w", err)
		}
		entry = ledger.NewEntry(subjectID)
	}
	return &SubjectStatus{Subject: subj, Entry: entry}, nil
}

// Overview summarizes every subject of the dataset.
func (s *AdminService) Overview(ctx context.Context, performingAdminID int64) (*Overview, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	entries, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	o := &Overview{Subjects: len(subjects), ByStatus: make(map[ledger.ResponseStatus]int)}
	for _, e := range entries {
		if !e.EmailSent {
			continue
		}
		o.Contacted++
		o.ByStatus[e.ResponseStatus]++
		for k := range e.Reminders {
			if e.Reminders[k].IsSent() {
				o.RemindersSent[k]++
			}
		}
	}
	return o, nil
}

// MarkResponse records the reply state of a subject.
func (s *AdminService) MarkResponse(ctx context.Context, performingAdminID, subjectID int64, status ledger.ResponseStatus) error {
	if err := s.authorize(performingAdminID); err != nil {
		return err
	}
	if _, err := s.subjects.GetByID(ctx, subjectID); err != nil {
		return err
	}
	if err := s.ledger.SetResponseStatus(ctx, subjectID, status); err != nil {
		return fmt.Errorf("failed to set response status: %w", err)
	}
	return nil
}

// SetStage sets one stage flag of a subject.
func (s *AdminService) SetStage(ctx context.Context, performingAdminID, subjectID int64, stage ledger.Stage, value bool) error {
	if err := s.authorize(performingAdminID); err != nil {
		return err
	}
	if _, err := s.subjects.GetByID(ctx, subjectID); err != nil {
		return err
	}
	if err := s.ledger.UpsertStage(ctx, subjectID, stage, value); err != nil {
		return fmt.Errorf("failed to set stage: %w", err)
	}
	return nil
}

// AddSubject registers a new outreach target.
func (s *AdminService) AddSubject(ctx context.Context, performingAdminID int64, subj *subject.Subject) (*subject.Subject, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(subj.Name) == "" || !strings.Contains(subj.Email, "@") {
		return nil, fmt.Errorf("subject requires a name and a valid email")
	}
	if err := s.subjects.Create(ctx, subj); err != nil {
		if errors.Is(err, idb.ErrDuplicateSubject) {
			return nil, ErrSubjectAlreadyExists
		}
		return nil, fmt.Errorf("failed to create subject in repository: %w", err)
	}
	return subj, nil
}

// CorrectSubject fixes the organization and email of a subject. Empty
// values keep the current ones.
func (s *AdminService) CorrectSubject(ctx context.Context, performingAdminID, subjectID int64, organization, email string) (*subject.Subject, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	subj, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if organization != "" {
		subj.Organization = organization
	}
	if email != "" {
		subj.Email = email
	}
	if err := s.subjects.UpdateContact(ctx, subjectID, subj.Organization, subj.Email); err != nil {
		if errors.Is(err, idb.ErrDuplicateSubject) {
			return nil, ErrSubjectAlreadyExists
		}
		return nil, fmt.Errorf("failed to update subject: %w", err)
	}
	return subj, nil
}
