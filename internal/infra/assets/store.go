// Package assets gives access to the files outreach reads and writes under
// the project directory: reminder templates, per-subject emails and CVs.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"academic_outreach/internal/domain/subject"
)

var ErrTemplateNotFound = fmt.Errorf("reminder template not found")
var ErrEmailNotFound = fmt.Errorf("archived email not found")

// Store resolves artifact paths below a project directory.
//
//	<dir>/reminder{k}.html
//	<dir>/data/<safe_name>/email{n}.html
//	<dir>/data/<safe_name>/<cv file>
type Store struct {
	dir        string
	cvFilename string
}

func NewStore(projectDir, cvFilename string) *Store {
	return &Store{dir: projectDir, cvFilename: cvFilename}
}

// ReminderTemplate returns the raw HTML of reminder k.
func (s *Store) ReminderTemplate(k int) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("reminder%d.html", k))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// SubjectDir is the artifact folder of subj.
func (s *Store) SubjectDir(subj *subject.Subject) string {
	return filepath.Join(s.dir, "data", subj.SafeName())
}

// EmailPath is the archive path of email n (1 is the initial email).
func (s *Store) EmailPath(subj *subject.Subject, n int) string {
	return filepath.Join(s.SubjectDir(subj), fmt.Sprintf("email%d.html", n))
}

// ReadEmail returns the archived HTML of email n.
func (s *Store) ReadEmail(subj *subject.Subject, n int) (string, error) {
	path := s.EmailPath(subj, n)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrEmailNotFound, path)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// WriteEmail archives html as email n, creating the subject folder if needed.
func (s *Store) WriteEmail(subj *subject.Subject, n int, html string) error {
	if err := os.MkdirAll(s.SubjectDir(subj), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", s.SubjectDir(subj), err)
	}
	path := s.EmailPath(subj, n)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// HasEmail reports whether email n exists.
func (s *Store) HasEmail(subj *subject.Subject, n int) bool {
	return fileExists(s.EmailPath(subj, n))
}

// CVPath is the location of the subject's tailored CV.
func (s *Store) CVPath(subj *subject.Subject) string {
	return filepath.Join(s.SubjectDir(subj), s.cvFilename)
}

// HasCV reports whether the CV file exists.
func (s *Store) HasCV(subj *subject.Subject) bool {
	return fileExists(s.CVPath(subj))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
