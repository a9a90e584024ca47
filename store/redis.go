// store/redis.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package store

import (
	"context"
	"errors"
	"slices"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

// Redis stores each object as a string value under a key prefix.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to the server at addr, which may also be a
// redis:// URL, in which case password and db are ignored.
func NewRedis(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	var opt *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		var err error
		if opt, err = redis.ParseURL(addr); err != nil {
			return nil, err
		}
	} else {
		opt = &redis.Options{Addr: addr, Password: password, DB: db}
	}

	if prefix == "" {
		prefix = "fms:"
	}
	r := &Redis{rdb: redis.NewClient(opt), prefix: prefix}
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		r.rdb.Close()
		return nil, err
	}
	return r, nil
}

func (r *Redis) Get(ctx context.Context, name string) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	b, err := r.rdb.Get(ctx, r.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *Redis) Put(ctx context.Context, name string, data []byte) error {
	if err := CheckName(name); err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+name, data, 0).Err()
}

func (r *Redis) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := r.rdb.Scan(ctx, 0, globEscape(r.prefix+prefix)+"*", 256).Iterator()
	for it.Next(ctx) {
		names = append(names, strings.TrimPrefix(it.Val(), r.prefix))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	// SCAN may return a key more than once.
	slices.Sort(names)
	return slices.Compact(names), nil
}

func (r *Redis) Delete(ctx context.Context, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	n, err := r.rdb.Del(ctx, r.prefix+name).Result()
	if err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func globEscape(s string) string {
	var sb strings.Builder
	for _, ch := range s {
		if strings.ContainsRune(`*?[]\`, ch) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}
