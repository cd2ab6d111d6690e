package graph

import (
	"errors"
	"testing"

	"github.com/hambonesoftware/MIND/graph/emit"
)

func TestOptions(t *testing.T) {
	t.Run("functional options", func(t *testing.T) {
		emitter := emit.NewBufferedEmitter()
		engine, err := New(nil, nil,
			WithMaxNodeFirings(1024),
			WithMaxTokens(2048),
			WithLoopBars(8),
			WithEmitter(emitter),
		)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if engine.opts.Limits.MaxNodeFirings != 1024 {
			t.Errorf("expected MaxNodeFirings = 1024, got %d", engine.opts.Limits.MaxNodeFirings)
		}
		if engine.opts.Limits.MaxTokens != 2048 {
			t.Errorf("expected MaxTokens = 2048, got %d", engine.opts.Limits.MaxTokens)
		}
		if engine.LoopBars() != 8 {
			t.Errorf("expected LoopBars = 8, got %d", engine.LoopBars())
		}
		if engine.emitter != emitter {
			t.Error("expected WithEmitter to replace the emitter")
		}
	})

	t.Run("options struct", func(t *testing.T) {
		engine, err := New(nil, nil, WithOptions(Options{Limits: Limits{MaxTokens: 64}, LoopBars: 4}))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if engine.opts.Limits.MaxTokens != 64 {
			t.Errorf("expected MaxTokens = 64, got %d", engine.opts.Limits.MaxTokens)
		}
		if engine.opts.Limits.MaxNodeFirings != DefaultMaxNodeFirings {
			t.Errorf("expected default MaxNodeFirings, got %d", engine.opts.Limits.MaxNodeFirings)
		}
		if engine.LoopBars() != 4 {
			t.Errorf("expected LoopBars = 4, got %d", engine.LoopBars())
		}
	})

	t.Run("later options override", func(t *testing.T) {
		engine, err := New(nil, nil, WithOptions(Options{LoopBars: 4}), WithLoopBars(12))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if engine.LoopBars() != 12 {
			t.Errorf("expected LoopBars = 12, got %d", engine.LoopBars())
		}
	})

	invalid := map[string]Option{
		"zero firings":   WithMaxNodeFirings(0),
		"negative token": WithMaxTokens(-1),
		"zero loop":      WithLoopBars(0),
	}
	for name, opt := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := New(nil, nil, opt)
			var ee *EngineError
			if !errors.As(err, &ee) {
				t.Fatalf("expected *EngineError, got %v", err)
			}
			if ee.Code != "INVALID_OPTION" {
				t.Errorf("expected code INVALID_OPTION, got %q", ee.Code)
			}
		})
	}
}
