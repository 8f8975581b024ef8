// internal/domain/ledger/shared_types.go
package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxReminders is the number of follow-ups sent after the initial email.
const MaxReminders = 3

// Stage identifies one of the upstream processing steps tracked per subject.
type Stage string

const (
	StageGathering Stage = "gathering"
	StageFiltering Stage = "filtering"
	StageHTML      Stage = "html"
	StageCV        Stage = "cv"
	StageEmailSent Stage = "email_sent"
)

// ParseStage maps a user supplied stage name onto a Stage.
func ParseStage(s string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(s))) {
	case StageGathering:
		return StageGathering, nil
	case StageFiltering:
		return StageFiltering, nil
	case StageHTML:
		return StageHTML, nil
	case StageCV:
		return StageCV, nil
	case StageEmailSent:
		return StageEmailSent, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// ResponseStatus is the reply state of a subject. The numeric values are
// persisted and must not change.
type ResponseStatus int

const (
	StatusNoAnswer        ResponseStatus = 0
	StatusPositive        ResponseStatus = 1
	StatusNegative        ResponseStatus = 2
	StatusOutOfOffice     ResponseStatus = 3
	StatusFollowUpNeeded  ResponseStatus = 4
	StatusDoNotContact    ResponseStatus = 10
	StatusStaleNoResponse ResponseStatus = 20
)

var statusNames = map[ResponseStatus]string{
	StatusNoAnswer:        "no_answer",
	StatusPositive:        "positive",
	StatusNegative:        "negative",
	StatusOutOfOffice:     "out_of_office",
	StatusFollowUpNeeded:  "follow_up_needed",
	StatusDoNotContact:    "do_not_contact",
	StatusStaleNoResponse: "stale_no_response",
}

func (s ResponseStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status_%d", int(s))
}

// Valid reports whether s is one of the known codes.
func (s ResponseStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// AwaitingReply reports whether reminders may still be sent for s.
func (s ResponseStatus) AwaitingReply() bool {
	return s == StatusNoAnswer || s == StatusStaleNoResponse
}

// Resolved reports whether s closes the outreach for its organization slot.
func (s ResponseStatus) Resolved() bool {
	switch s {
	case StatusPositive, StatusNegative, StatusFollowUpNeeded, StatusDoNotContact:
		return true
	}
	return false
}

// ParseResponseStatus accepts either the symbolic name or the numeric code.
func ParseResponseStatus(s string) (ResponseStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		status := ResponseStatus(n)
		if !status.Valid() {
			return 0, fmt.Errorf("unknown response status code %d", n)
		}
		return status, nil
	}
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown response status %q", s)
}

// AwaitingReplyStatuses lists the statuses the reminder pass selects.
func AwaitingReplyStatuses() []ResponseStatus {
	return []ResponseStatus{StatusNoAnswer, StatusStaleNoResponse}
}
