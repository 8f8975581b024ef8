// Package organization tracks which subjects are active in outreach for each
// organization.
package organization

import "context"

// SlotRepository stores, per organization, the ordered list of subject IDs
// admitted into outreach. Slots are append-only.
type SlotRepository interface {
	Append(ctx context.Context, organization string, subjectID int64) error
	// Latest returns the most recently appended subject; ok is false when
	// the organization has none.
	Latest(ctx context.Context, organization string) (subjectID int64, ok bool, err error)
	Contains(ctx context.Context, organization string, subjectID int64) (bool, error)
	List(ctx context.Context, organization string) ([]int64, error)
}
