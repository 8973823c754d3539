// Package storage abstracts where trained artifacts live. The model file and
// the reference table are written and read through a FileStore, so a
// deployment can keep them on local disk or in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// FileStore is a minimal file-oriented store.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. Nothing is visible to readers
	// until Close returns nil.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete is idempotent.
	Delete(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"` // "local" (default) or "s3"
	Root     string `json:"root,omitempty" yaml:"root,omitempty"`
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Open creates the FileStore described by cfg.
func Open(cfg Config) (FileStore, error) {
	switch cfg.Kind {
	case "", "local":
		root := cfg.Root
		if root == "" {
			root = "."
		}
		return NewLocal(root)
	case "s3":
		if cfg.Bucket == "" {
			return nil, errors.New("storage: s3 bucket is required")
		}
		return NewS3(NewS3Client(cfg), cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("storage: unknown kind %q", cfg.Kind)
	}
}

// ReadFile reads the whole named file.
func ReadFile(ctx context.Context, fs FileStore, path string) ([]byte, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteFile writes data to the named file.
func WriteFile(ctx context.Context, fs FileStore, path string, data []byte) error {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
