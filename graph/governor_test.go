package graph

import (
	"errors"
	"testing"
)

func TestGovernor(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		g := NewGovernor(Limits{})
		for i := 0; i < DefaultMaxNodeFirings-1; i++ {
			g.NodeFired()
		}
		if err := g.Check(); err != nil {
			t.Fatalf("expected no halt below the ceiling, got %v", err)
		}
		g.NodeFired()
		err := g.Check()
		if !errors.Is(err, ErrSafetyCap) {
			t.Fatalf("expected ErrSafetyCap, got %v", err)
		}
		var se *SafetyHaltError
		if !errors.As(err, &se) {
			t.Fatalf("expected *SafetyHaltError, got %T", err)
		}
		if se.Reason != HaltNodeFirings || se.Count != DefaultMaxNodeFirings || se.Limit != DefaultMaxNodeFirings {
			t.Errorf("unexpected halt details: %+v", se)
		}
	})

	t.Run("token ceiling", func(t *testing.T) {
		g := NewGovernor(Limits{MaxTokens: 3})
		g.TokensCreated(2)
		if err := g.Check(); err != nil {
			t.Fatalf("expected no halt, got %v", err)
		}
		g.TokensCreated(1)
		var se *SafetyHaltError
		if err := g.Check(); !errors.As(err, &se) || se.Reason != HaltTokens {
			t.Fatalf("expected tokens halt, got %v", err)
		}
		if g.Tokens() != 3 {
			t.Errorf("expected 3 tokens, got %d", g.Tokens())
		}
	})

	t.Run("firings are checked first", func(t *testing.T) {
		g := NewGovernor(Limits{MaxNodeFirings: 1, MaxTokens: 1})
		g.NodeFired()
		g.TokensCreated(1)
		var se *SafetyHaltError
		if err := g.Check(); !errors.As(err, &se) || se.Reason != HaltNodeFirings {
			t.Fatalf("expected node_firings halt, got %v", err)
		}
	})

	t.Run("error message", func(t *testing.T) {
		err := &SafetyHaltError{Reason: HaltTokens, Count: 512, Limit: 512}
		want := "safety cap reached: 512 tokens (limit 512)"
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
	})
}

func TestWorklist(t *testing.T) {
	w := newWorklist([]Token{{NodeID: "a"}, {NodeID: "b"}})
	w.push(Token{NodeID: "c"})

	first, ok := w.pop()
	if !ok || first.NodeID != "a" {
		t.Fatalf("expected a first, got %v (ok=%v)", first, ok)
	}
	if w.Len() != 2 {
		t.Errorf("expected 2 tokens left, got %d", w.Len())
	}
	rest := w.drain()
	if len(rest) != 2 || rest[0].NodeID != "b" || rest[1].NodeID != "c" {
		t.Errorf("expected [b c], got %v", rest)
	}
	if _, ok := w.pop(); ok {
		t.Error("expected an empty worklist after drain")
	}
}
