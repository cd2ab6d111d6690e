package store

import (
	"context"
	"sync"
	"testing"
)

type memState struct {
	Values map[string]int `json:"values"`
}

func TestMemStore_CopiesState(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore[memState]()

	s := memState{Values: map[string]int{"a": 1}}
	if err := st.SaveBar(ctx, "s1", 1, 0, s); err != nil {
		t.Fatalf("SaveBar failed: %v", err)
	}
	s.Values["a"] = 42

	got, _, err := st.LoadLatest(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if got.Values["a"] != 1 {
		t.Errorf("expected saved value 1, got %d", got.Values["a"])
	}

	got.Values["a"] = 7
	again, _, _ := st.LoadLatest(ctx, "s1")
	if again.Values["a"] != 1 {
		t.Errorf("expected loaded value isolated from store, got %d", again.Values["a"])
	}
}

func TestMemStore_History(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore[memState]()

	for _, step := range []int{3, 1, 2} {
		if err := st.SaveBar(ctx, "s1", step, step-1, memState{Values: map[string]int{"step": step}}); err != nil {
			t.Fatalf("SaveBar failed: %v", err)
		}
	}

	history, err := st.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}
	for i, r := range history {
		if r.Step != i+1 {
			t.Errorf("record %d: expected step %d, got %d", i, i+1, r.Step)
		}
		if r.BarIndex != i {
			t.Errorf("record %d: expected bar index %d, got %d", i, i, r.BarIndex)
		}
	}

	empty, err := st.History(ctx, "none")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty history, got %v, %v", empty, err)
	}
}

func TestMemStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore[memState]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for step := 1; step <= 20; step++ {
				_ = st.SaveBar(ctx, "s1", worker*100+step, step%16, memState{})
				_, _, _ = st.LoadLatest(ctx, "s1")
			}
		}(i)
	}
	wg.Wait()

	_, step, err := st.LoadLatest(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if step != 720 {
		t.Errorf("expected highest step 720, got %d", step)
	}
}
