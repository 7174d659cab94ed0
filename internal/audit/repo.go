package audit

import "context"

// Repo persists events. Record reports false when the id was already stored.
type Repo interface {
	Record(ctx context.Context, e Event) (bool, error)
	List(ctx context.Context, f Filter) ([]Event, error)
}
