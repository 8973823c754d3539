package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLocalWriteFileReadFile(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	if err := WriteFile(ctx, s, "models/accent.msgpack", []byte("model bytes")); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(ctx, s, "models/accent.msgpack")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "model bytes" {
		t.Fatalf("got %q", got)
	}
}

func TestLocalReadNotExist(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.Read(context.Background(), "no-such-file")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLocalWriteInvisibleUntilClose(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	w, err := s.Write(ctx, "ref.csv")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "filename,cluster\n")
	if ok, _ := s.Exists(ctx, "ref.csv"); ok {
		t.Fatal("file visible before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "ref.csv"); !ok {
		t.Fatal("file missing after Close")
	}
	// Double close is harmless.
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, got %d entries", len(entries))
	}
	info, _ := entries[0].Info()
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestLocalOverwrite(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	WriteFile(ctx, s, "f", []byte("long content here"))
	WriteFile(ctx, s, "f", []byte("short"))
	got, _ := ReadFile(ctx, s, "f")
	if string(got) != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}
}

func TestLocalDeleteIdempotent(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	if err := s.Delete(ctx, "ghost"); err != nil {
		t.Fatal(err)
	}
	WriteFile(ctx, s, "tmp", []byte("x"))
	if err := s.Delete(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "tmp"); ok {
		t.Fatal("file should be gone after delete")
	}
}

func TestLocalAbsolutePath(t *testing.T) {
	s := newTestLocal(t)
	abs := filepath.Join(t.TempDir(), "elsewhere.csv")
	if err := WriteFile(context.Background(), s, abs, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(abs); err != nil {
		t.Fatalf("absolute path not honoured: %v", err)
	}
}

func TestNewLocalCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.Root())
	if err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(Config{Root: dir})
	if err != nil {
		t.Fatal(err)
	}
	if l, ok := fs.(*Local); !ok || l.Root() != dir {
		t.Fatalf("Open(local) = %T", fs)
	}
	if _, err := Open(Config{Kind: "s3"}); err == nil {
		t.Error("expected error for s3 without bucket")
	}
	if _, err := Open(Config{Kind: "ftp"}); err == nil {
		t.Error("expected error for unknown kind")
	}
	fs, err = Open(Config{Kind: "s3", Bucket: "models", Endpoint: "http://localhost:9000"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fs.(*S3Store); !ok {
		t.Fatalf("Open(s3) = %T", fs)
	}
}

var _ FileStore = (*Local)(nil)
