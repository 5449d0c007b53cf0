package fs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flunode/flu/pkg/fs"
)

const testContentHello = "hello, atomic world"

func TestAtomicWriteFile_ReplacesExistingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "final.txt")

	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	writer := fs.NewAtomicWriter(fs.NewReal())

	err := writer.WriteWithDefaults(path, strings.NewReader(testContentHello))
	if err != nil {
		t.Fatalf("WriteWithDefaults: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != testContentHello {
		t.Fatalf("content=%q, want %q", string(got), testContentHello)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("dir has %d entries after atomic write, want 1 (no leftover temp file)", len(entries))
	}
}

func TestAtomicWriteFile_RejectsZeroPerm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := fs.NewAtomicWriter(fs.NewReal())

	err := writer.Write(filepath.Join(dir, "f.txt"), strings.NewReader("x"), fs.AtomicWriteOptions{})
	if err == nil {
		t.Fatal("want error for zero Perm, got nil")
	}
}
