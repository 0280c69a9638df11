package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSizes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "movies.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := fileSizes(databaseFiles(db)...)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("db+wal (no shm): got %d bytes, want 8", got)
	}

	got, err = fileSizes("", filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("missing/empty: got %d bytes, want 0", got)
	}
}
