package subject

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Subject entities.
type Repository interface {
	Create(ctx context.Context, s *Subject) error
	GetByID(ctx context.Context, id int64) (*Subject, error)
	// UpdateContact corrects the administrative fields of a subject.
	UpdateContact(ctx context.Context, id int64, organization, email string) error
	// ListNotContacted returns subjects whose initial email has not been sent.
	ListNotContacted(ctx context.Context) ([]*Subject, error)
	ListAll(ctx context.Context) ([]*Subject, error)
}
