package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Documents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{Name: "handbook.pdf", Size: 2048, Pages: 12, Chunks: 30, SourcePath: "/tmp/handbook.pdf"}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.CreatedAt.IsZero() {
		t.Errorf("ID and CreatedAt should be assigned: %+v", doc)
	}
	second := &models.Document{ID: "fixed", Name: "notes.txt", Size: 10, Chunks: 2}
	if err := store.CreateDocument(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "handbook.pdf" || got.Size != 2048 || got.Pages != 12 || got.Chunks != 30 || got.SourcePath != "/tmp/handbook.pdf" {
		t.Errorf("got %+v", got)
	}

	byName, err := store.FindDocumentByName(ctx, "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if byName.ID != "fixed" {
		t.Errorf("FindDocumentByName id = %s", byName.ID)
	}
	if _, err := store.FindDocumentByName(ctx, "absent.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	list, err := store.ListDocuments(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "handbook.pdf" || list[1].Name != "notes.txt" {
		t.Errorf("list in upload order: %+v", list)
	}
	page, _ := store.ListDocuments(ctx, 1, 1)
	if len(page) != 1 || page[0].ID != "fixed" {
		t.Errorf("offset page: %+v", page)
	}

	n, _ := store.CountDocuments(ctx)
	chunks, _ := store.SumChunks(ctx)
	if n != 2 || chunks != 32 {
		t.Errorf("count=%d chunks=%d", n, chunks)
	}

	if err := store.DeleteDocument(ctx, "fixed"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "fixed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_Exchanges(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ex := &models.Exchange{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i), Degraded: i == 2}
		if err := store.CreateExchange(ctx, ex); err != nil {
			t.Fatal(err)
		}
		if ex.ID == "" {
			t.Error("ID should be assigned")
		}
	}

	all, err := store.ListExchanges(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Question != "q1" || !all[1].Degraded || all[2].Degraded {
		t.Errorf("history: %+v", all)
	}
	last, _ := store.ListExchanges(ctx, 2)
	if len(last) != 2 || last[0].Question != "q2" || last[1].Question != "q3" {
		t.Errorf("last two oldest first: %+v", last)
	}
}

func TestSQLiteStorage_Reset(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_ = store.CreateDocument(ctx, &models.Document{Name: "a.pdf", Chunks: 4})
	_ = store.CreateExchange(ctx, &models.Exchange{Question: "q", Answer: "a"})

	if err := store.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := store.CountDocuments(ctx)
	chunks, _ := store.SumChunks(ctx)
	history, _ := store.ListExchanges(ctx, 0)
	if n != 0 || chunks != 0 || len(history) != 0 {
		t.Errorf("after reset: docs=%d chunks=%d history=%d", n, chunks, len(history))
	}
}
