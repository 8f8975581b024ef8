package subject

import (
	"strings"
	"time"
)

// Subject is an outreach target, typically a professor.
type Subject struct {
	ID           int64
	Name         string
	Organization string
	Email        string
	Webpage      string
	ResearchArea string
	CreatedAt    time.Time
}

// SafeName is the directory-safe form of the subject name used for the
// per-subject artifact folder.
func (s *Subject) SafeName() string {
	var b strings.Builder
	for _, r := range s.Name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
