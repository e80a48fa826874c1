package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	idx := filepath.Join(dir, "kotae.idx")
	if err := os.WriteFile(idx, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{idx}, 5},
		{"directory", []string{sub}, 3},
		{"file and directory", []string{idx, sub}, 8},
		{"missing path skipped", []string{idx, filepath.Join(dir, "nonexistent"), sub}, 8},
		{"empty path skipped", []string{"", idx}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}

func TestSnapshotFiles(t *testing.T) {
	files := SnapshotFiles("/data/kotae.db")
	if len(files) != 3 || files[1] != "/data/kotae.db-wal" {
		t.Errorf("got %v", files)
	}
	if SnapshotFiles("") != nil {
		t.Error("empty path should yield nil")
	}
}
