package bundle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type bundleRepoPG struct{ pool *pgxpool.Pool }

// NewBundleRepoPG returns a Repository backed by the bundles table.
func NewBundleRepoPG(pool *pgxpool.Pool) Repository { return &bundleRepoPG{pool: pool} }

func (r *bundleRepoPG) Save(ctx context.Context, b *StoredBundle) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bundles (id, document, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, created_at = EXCLUDED.created_at`,
		b.ID, string(b.Document), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("save bundle %s: %w", b.ID, err)
	}
	return nil
}

func (r *bundleRepoPG) GetByID(ctx context.Context, id string) (*StoredBundle, error) {
	var (
		b   StoredBundle
		doc string
	)
	// document is stored as text so the returned bytes match what was saved.
	err := r.pool.QueryRow(ctx, `SELECT id, document, created_at FROM bundles WHERE id = $1`, id).
		Scan(&b.ID, &doc, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bundle %s: %w", id, err)
	}
	b.Document = []byte(doc)
	return &b, nil
}

func (r *bundleRepoPG) List(ctx context.Context, limit, offset int) ([]*Summary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bundles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bundles: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, created_at FROM bundles ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	items := []*Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *bundleRepoPG) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
