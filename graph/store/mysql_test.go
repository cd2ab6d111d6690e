package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestMySQLStore_Integration(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL integration test: set MYSQL_TEST_DSN to run")
	}

	ctx := context.Background()
	st, err := NewMySQLStore[map[string]int](dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	session := fmt.Sprintf("mysql-%d", time.Now().UnixNano())
	defer func() { _ = st.DeleteSession(ctx, session) }()

	for step := 1; step <= 16; step++ {
		if err := st.SaveBar(ctx, session, step, step-1, map[string]int{"bar": step - 1}); err != nil {
			t.Fatalf("SaveBar(%d) failed: %v", step, err)
		}
	}
	got, step, err := st.LoadLatest(ctx, session)
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if step != 16 || got["bar"] != 15 {
		t.Errorf("expected step 16 bar 15, got step %d bar %d", step, got["bar"])
	}
}

func TestNewMySQLStore_BadDSN(t *testing.T) {
	if _, err := NewMySQLStore[int]("not a dsn"); err == nil {
		t.Error("expected error for malformed DSN")
	}
}
