package bundle

import "context"

// Repository stores produced bundles keyed by bundle id. Save is an upsert.
type Repository interface {
	Save(ctx context.Context, b *StoredBundle) error
	GetByID(ctx context.Context, id string) (*StoredBundle, error)
	List(ctx context.Context, limit, offset int) ([]*Summary, int, error)
	Ping(ctx context.Context) error
}
