// store/gcs.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package store

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket, optionally under
// a common prefix.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// NewGCS connects to the given bucket. Credentials are taken from
// credsFile if given, then from the FMS_GCS_CREDENTIALS environment
// variable (the JSON itself), and otherwise from the application default
// credentials.
func NewGCS(ctx context.Context, bucket, prefix, credsFile string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("no bucket specified")
	}

	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	} else if creds := os.Getenv("FMS_GCS_CREDENTIALS"); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCS{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: cleanPrefix(prefix),
	}, nil
}

// cleanPrefix returns p with a single trailing slash, or "" if p is
// empty.
func cleanPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func (g *GCS) Get(ctx context.Context, name string) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	r, err := g.bucket.Object(g.prefix + name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *GCS) Put(ctx context.Context, name string, data []byte) error {
	if err := CheckName(name); err != nil {
		return err
	}
	w := g.bucket.Object(g.prefix + name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	query := storage.Query{
		Projection: storage.ProjectionNoACL,
		Prefix:     g.prefix + prefix,
	}

	var names []string
	it := g.bucket.Objects(ctx, &query)
	for {
		if obj, err := it.Next(); err == iterator.Done {
			break
		} else if err != nil {
			return nil, err
		} else if name := strings.TrimPrefix(obj.Name, g.prefix); name != "" && !strings.HasSuffix(name, "/") {
			// Skip the "folder" placeholder objects.
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (g *GCS) Delete(ctx context.Context, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	err := g.bucket.Object(g.prefix + name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

func (g *GCS) Close() error { return g.client.Close() }
