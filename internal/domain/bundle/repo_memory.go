package bundle

import (
	"context"
	"sort"
	"sync"
)

type memoryRepo struct {
	mu    sync.RWMutex
	items map[string]*StoredBundle
}

// NewMemoryRepo returns a process-local Repository. Contents are lost on
// restart.
func NewMemoryRepo() Repository {
	return &memoryRepo{items: make(map[string]*StoredBundle)}
}

func (r *memoryRepo) Save(ctx context.Context, b *StoredBundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *b
	cp.Document = append([]byte(nil), b.Document...)

	r.mu.Lock()
	r.items[b.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*StoredBundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Summary, int, error) {
	r.mu.RLock()
	all := make([]*Summary, 0, len(r.items))
	for _, b := range r.items {
		all = append(all, &Summary{ID: b.ID, CreatedAt: b.CreatedAt})
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*Summary{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memoryRepo) Ping(context.Context) error { return nil }
