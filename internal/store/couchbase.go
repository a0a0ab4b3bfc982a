package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// CouchbaseStore keeps blobs as raw binary documents in a Couchbase bucket,
// one document per blob key.
type CouchbaseStore struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	bucketName string
}

// NewCouchbaseStore connects to the cluster and opens the bucket.
func NewCouchbaseStore(url, username, password, bucketName string) (*CouchbaseStore, error) {
	// Ensure proper connection string format
	connectionString := url
	if len(url) > 7 && url[:7] == "http://" {
		connectionString = "couchbases://" + url[7:]
	} else if len(url) > 13 && url[:13] != "couchbases://" {
		connectionString = "couchbases://" + url
	}

	cluster, err := gocb.Connect(connectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	// Wait for cluster to be ready
	err = cluster.WaitUntilReady(30*time.Second, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for cluster: %w", err)
	}

	// Open bucket (assume it exists - don't try to create it)
	bucket := cluster.Bucket(bucketName)
	err = bucket.WaitUntilReady(10*time.Second, nil)
	if err != nil {
		return nil, fmt.Errorf("bucket %q is not accessible: %w", bucketName, err)
	}

	return &CouchbaseStore{
		cluster:    cluster,
		bucket:     bucket,
		bucketName: bucketName,
	}, nil
}

func (cs *CouchbaseStore) Get(ctx context.Context, key string) ([]byte, error) {
	col := cs.bucket.DefaultCollection()

	res, err := col.Get(key, &gocb.GetOptions{
		Transcoder: gocb.NewRawBinaryTranscoder(),
		Context:    ctx,
	})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}

	var data []byte
	if err := res.Content(&data); err != nil {
		return nil, fmt.Errorf("failed to parse document content: %w", err)
	}
	return data, nil
}

func (cs *CouchbaseStore) Put(ctx context.Context, key string, data []byte) error {
	col := cs.bucket.DefaultCollection()

	_, err := col.Upsert(key, data, &gocb.UpsertOptions{
		Transcoder: gocb.NewRawBinaryTranscoder(),
		Context:    ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", key, err)
	}
	return nil
}

func (cs *CouchbaseStore) Exists(ctx context.Context, key string) (bool, error) {
	col := cs.bucket.DefaultCollection()

	res, err := col.Exists(key, &gocb.ExistsOptions{Context: ctx})
	if err != nil {
		return false, fmt.Errorf("failed to check document %s: %w", key, err)
	}
	return res.Exists(), nil
}

func (cs *CouchbaseStore) List(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf("SELECT RAW META().id FROM `%s` WHERE META().id LIKE $prefix", cs.bucketName)
	rows, err := cs.cluster.Query(query, &gocb.QueryOptions{
		NamedParameters: map[string]interface{}{"prefix": prefix + "%"},
		Context:         ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys under %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id string
		if err := rows.Row(&id); err != nil {
			return nil, fmt.Errorf("failed to read key row: %w", err)
		}
		keys = append(keys, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating key rows: %w", err)
	}
	return keys, nil
}

func (cs *CouchbaseStore) Close() error {
	return cs.cluster.Close(nil)
}
