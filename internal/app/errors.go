package app

import "fmt"

// Custom application-level errors
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrPassInProgress = fmt.Errorf("another process is running a pass")

// ConfigurationGapError means a subject cannot be processed because a
// required setting or recorded value is missing. The subject is skipped.
type ConfigurationGapError struct {
	SubjectID int64
	Reminder  int
	Detail    string
}

func (e *ConfigurationGapError) Error() string {
	if e.Reminder > 0 {
		return fmt.Sprintf("configuration gap for subject %d reminder %d: %s", e.SubjectID, e.Reminder, e.Detail)
	}
	return fmt.Sprintf("configuration gap for subject %d: %s", e.SubjectID, e.Detail)
}

// LedgerInconsistencyError means the stored chronology violates its own
// ordering rules. It is reported and never repaired automatically.
type LedgerInconsistencyError struct {
	SubjectID int64
	Detail    string
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency for subject %d: %s", e.SubjectID, e.Detail)
}
