package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mind.db")

	st, err := NewSQLiteStore[map[string]int](path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if st.Path() != path {
		t.Errorf("expected path %q, got %q", path, st.Path())
	}
	if err := st.SaveBar(ctx, "s1", 1, 0, map[string]int{"counter": 1}); err != nil {
		t.Fatalf("SaveBar failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteStore[map[string]int](path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, step, err := reopened.LoadLatest(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if step != 1 || got["counter"] != 1 {
		t.Errorf("expected step 1 counter 1, got step %d counter %d", step, got["counter"])
	}
}

func TestSQLiteStore_Closed(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore[int](":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("expected second Close to succeed, got %v", err)
	}

	if err := st.SaveBar(ctx, "s1", 1, 0, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("SaveBar: expected ErrClosed, got %v", err)
	}
	if _, _, err := st.LoadLatest(ctx, "s1"); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadLatest: expected ErrClosed, got %v", err)
	}
	if err := st.SaveCheckpoint(ctx, "cp", 1, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("SaveCheckpoint: expected ErrClosed, got %v", err)
	}
	if _, _, err := st.LoadCheckpoint(ctx, "cp"); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadCheckpoint: expected ErrClosed, got %v", err)
	}
	if err := st.DeleteSession(ctx, "s1"); !errors.Is(err, ErrClosed) {
		t.Errorf("DeleteSession: expected ErrClosed, got %v", err)
	}
}
