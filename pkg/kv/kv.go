// Package kv provides a small key-value store with hierarchical keys. It
// backs the reference-table mirror: one record per training sample, grouped
// under a per-run prefix such as ["ref", "<run id>"].
//
// Keys are string slices encoded with a separator (default ':'). Badger
// provides the on-disk store; Memory serves tests and one-shot CLI runs.
package kv

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")
)

// Key is a hierarchical path such as Key{"ref", "run-1", "00000003"}.
// Segments must not contain the separator.
type Key []string

// String joins the segments with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key Key) ([]byte, error)

	Set(ctx context.Context, key Key, value []byte) error

	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key Key) error

	// List yields every entry strictly below prefix in lexicographic order
	// of the encoded key. An empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet writes all entries in one batch.
	BatchSet(ctx context.Context, entries []Entry) error

	// DeletePrefix removes every key strictly below prefix.
	DeletePrefix(ctx context.Context, prefix Key) error

	Close() error
}

// DefaultSeparator joins key segments.
const DefaultSeparator byte = ':'

// Options configures key encoding.
type Options struct {
	// Separator defaults to ':' when zero.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	parts := make([][]byte, len(k))
	for i, seg := range k {
		parts[i] = []byte(seg)
	}
	return bytes.Join(parts, []byte{o.sep()})
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// scanPrefix is the encoded prefix plus a trailing separator so that
// ["a","b"] does not match "a:bc". Empty prefixes scan everything.
func (o *Options) scanPrefix(prefix Key) []byte {
	if len(prefix) == 0 {
		return nil
	}
	return append(o.encode(prefix), o.sep())
}

// Count returns the number of entries below prefix.
func Count(ctx context.Context, s Store, prefix Key) (int, error) {
	n := 0
	for _, err := range s.List(ctx, prefix) {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
