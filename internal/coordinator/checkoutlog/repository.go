package checkoutlog

import "context"

// Repository appends checkout log entries.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
}
