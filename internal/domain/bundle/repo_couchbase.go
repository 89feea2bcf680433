package bundle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
)

const couchbaseDocType = "bundle"

// couchbaseDoc is the stored shape; Type lets N1QL listing skip foreign
// documents sharing the bucket.
type couchbaseDoc struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"created_at"`
}

type bundleRepoCouchbase struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	bucketName string
	collection *gocb.Collection
}

// CouchbaseConfig holds connection settings for the Couchbase backend.
type CouchbaseConfig struct {
	ConnString string
	Username   string
	Password   string
	Bucket     string
}

// ConnectCouchbase opens the cluster and waits for the bucket to be ready.
func ConnectCouchbase(cfg CouchbaseConfig) (*gocb.Cluster, error) {
	cluster, err := gocb.Connect(couchbaseConnString(cfg.ConnString), gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect couchbase: %w", err)
	}
	if err := cluster.Bucket(cfg.Bucket).WaitUntilReady(10*time.Second, nil); err != nil {
		cluster.Close(nil)
		return nil, fmt.Errorf("bucket %q is not accessible: %w", cfg.Bucket, err)
	}
	return cluster, nil
}

func couchbaseConnString(s string) string {
	if strings.Contains(s, "://") {
		return s
	}
	return "couchbase://" + s
}

// NewBundleRepoCouchbase stores one document per bundle, keyed
// "bundle::<id>", in the bucket's default collection.
func NewBundleRepoCouchbase(cluster *gocb.Cluster, bucket string) Repository {
	b := cluster.Bucket(bucket)
	return &bundleRepoCouchbase{
		cluster:    cluster,
		bucket:     b,
		bucketName: bucket,
		collection: b.DefaultCollection(),
	}
}

func couchbaseKey(id string) string { return couchbaseDocType + "::" + id }

func (r *bundleRepoCouchbase) Save(ctx context.Context, b *StoredBundle) error {
	doc := couchbaseDoc{
		Type:      couchbaseDocType,
		ID:        b.ID,
		Document:  string(b.Document),
		CreatedAt: b.CreatedAt,
	}
	if _, err := r.collection.Upsert(couchbaseKey(b.ID), doc, &gocb.UpsertOptions{Context: ctx}); err != nil {
		return fmt.Errorf("upsert bundle %s: %w", b.ID, err)
	}
	return nil
}

func (r *bundleRepoCouchbase) GetByID(ctx context.Context, id string) (*StoredBundle, error) {
	res, err := r.collection.Get(couchbaseKey(id), &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bundle %s: %w", id, err)
	}
	var doc couchbaseDoc
	if err := res.Content(&doc); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", id, err)
	}
	return &StoredBundle{ID: doc.ID, Document: []byte(doc.Document), CreatedAt: doc.CreatedAt}, nil
}

func (r *bundleRepoCouchbase) List(ctx context.Context, limit, offset int) ([]*Summary, int, error) {
	keyspace := "`" + r.bucketName + "`"

	countRes, err := r.cluster.Query(
		"SELECT RAW COUNT(*) FROM "+keyspace+" WHERE type = $1",
		&gocb.QueryOptions{Context: ctx, PositionalParameters: []interface{}{couchbaseDocType}},
	)
	if err != nil {
		return nil, 0, fmt.Errorf("count bundles: %w", err)
	}
	var total int
	if err := countRes.One(&total); err != nil {
		return nil, 0, fmt.Errorf("count bundles: %w", err)
	}

	rows, err := r.cluster.Query(
		"SELECT b.id, b.created_at FROM "+keyspace+" AS b WHERE b.type = $1 ORDER BY b.created_at DESC, b.id LIMIT $2 OFFSET $3",
		&gocb.QueryOptions{Context: ctx, PositionalParameters: []interface{}{couchbaseDocType, limit, offset}},
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	items := []*Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Row(&s); err != nil {
			return nil, 0, fmt.Errorf("decode bundle summary: %w", err)
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *bundleRepoCouchbase) Ping(ctx context.Context) error {
	_, err := r.bucket.Ping(&gocb.PingOptions{
		Context:      ctx,
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue},
	})
	return err
}
