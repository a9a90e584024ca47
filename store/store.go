// store/store.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package store provides storage backends for saved flight plans.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mmp/fms/log"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidName    = errors.New("invalid object name")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Store is a flat namespace of named byte blobs. Names are
// slash-separated relative paths.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	// List returns the names of all objects whose name starts with
	// prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// CheckName returns an error if name can't be used as an object name:
// it must be a clean relative path without "." or ".." elements.
func CheckName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.Contains(name, `\`) || path.Clean(name) != name {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	for _, elem := range strings.Split(name, "/") {
		if elem == "." || elem == ".." {
			return fmt.Errorf("%q: %w", name, ErrInvalidName)
		}
	}
	return nil
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend string `yaml:"backend"` // fs, gcs, s3, redis, or postgres

	Dir string `yaml:"dir"`

	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// GCS
	CredentialsFile string `yaml:"credentials_file"`

	// S3
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// Redis and Postgres
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	DSN      string `yaml:"dsn"`

	// CacheSize is the number of objects to keep in memory in front of
	// the backend; zero disables caching.
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// Open returns the backend described by cfg, wrapped with a cache if one
// was requested.
func Open(ctx context.Context, cfg Config, lg *log.Logger) (Store, error) {
	var s Store
	var err error
	switch cfg.Backend {
	case "", "fs":
		s, err = NewFS(cfg.Dir)
	case "gcs":
		s, err = NewGCS(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
	case "s3":
		s, err = NewS3(ctx, S3Options{
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	case "redis":
		s, err = NewRedis(ctx, cfg.Addr, cfg.Password, cfg.DB, cfg.Prefix)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Backend, ErrUnknownBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s store: %w", backendName(cfg.Backend), err)
	}

	lg.Info("opened flight plan store", "backend", backendName(cfg.Backend))

	if cfg.CacheSize > 0 {
		s = NewCached(s, cfg.CacheSize, cfg.CacheTTL)
	}
	return s, nil
}

func backendName(b string) string {
	if b == "" {
		return "fs"
	}
	return b
}

///////////////////////////////////////////////////////////////////////////
// Instrumentation

// Observer is told about the outcome of every store operation.
type Observer interface {
	ObserveStore(backend, op string, d time.Duration, err error)
}

type instrumented struct {
	s       Store
	backend string
	obs     Observer
}

// Instrument returns a Store that reports each operation on s to obs.
func Instrument(s Store, backend string, obs Observer) Store {
	return &instrumented{s: s, backend: backendName(backend), obs: obs}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		// Misses are an answer, not a failure.
		err = nil
	}
	i.obs.ObserveStore(i.backend, op, time.Since(start), err)
}

func (i *instrumented) Get(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	b, err := i.s.Get(ctx, name)
	i.observe("get", start, err)
	return b, err
}

func (i *instrumented) Put(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	err := i.s.Put(ctx, name, data)
	i.observe("put", start, err)
	return err
}

func (i *instrumented) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	names, err := i.s.List(ctx, prefix)
	i.observe("list", start, err)
	return names, err
}

func (i *instrumented) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := i.s.Delete(ctx, name)
	i.observe("delete", start, err)
	return err
}

func (i *instrumented) Close() error { return i.s.Close() }
