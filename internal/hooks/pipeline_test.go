package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPipeline_FireRunsInPriorityOrder(t *testing.T) {
	p := NewPipeline(nil)
	var order []string

	p.Register(PointBeforeModel, PriorityLow, "late", func(ctx context.Context, data map[string]any) (HookResult, error) {
		order = append(order, "late")
		return HookResult{ShouldContinue: true}, nil
	})
	p.Register(PointBeforeModel, PriorityHigh, "early", func(ctx context.Context, data map[string]any) (HookResult, error) {
		order = append(order, "early")
		return HookResult{ShouldContinue: true}, nil
	})

	if _, err := p.Fire(context.Background(), PointBeforeModel, map[string]any{}); err != nil {
		t.Fatalf("Fire() error: %v", err)
	}
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("order = %v, want [early late]", order)
	}
}

func TestPipeline_ShouldContinueFalseShortCircuits(t *testing.T) {
	p := NewPipeline(nil)
	secondCalled := false

	p.Register(PointBeforeTool, PriorityHigh, "blocker", func(ctx context.Context, data map[string]any) (HookResult, error) {
		return HookResult{ShouldContinue: false, Message: "blocked by policy"}, nil
	})
	p.Register(PointBeforeTool, PriorityLow, "never", func(ctx context.Context, data map[string]any) (HookResult, error) {
		secondCalled = true
		return HookResult{ShouldContinue: true}, nil
	})

	result, err := p.Fire(context.Background(), PointBeforeTool, map[string]any{})
	if err != nil {
		t.Fatalf("Fire() error: %v", err)
	}
	if result.ShouldContinue {
		t.Fatal("ShouldContinue = true, want false")
	}
	if result.Message != "blocked by policy" {
		t.Fatalf("Message = %q, want %q", result.Message, "blocked by policy")
	}
	if secondCalled {
		t.Fatal("second hook ran after short-circuit")
	}
}

func TestPipeline_ModifiedDataMergesIntoPayload(t *testing.T) {
	p := NewPipeline(nil)

	p.Register(PointAfterTool, PriorityNormal, "rewriter", func(ctx context.Context, data map[string]any) (HookResult, error) {
		return HookResult{ShouldContinue: true, ModifiedData: map[string]any{"output": "redacted"}}, nil
	})

	data := map[string]any{"output": "secret-value"}
	if _, err := p.Fire(context.Background(), PointAfterTool, data); err != nil {
		t.Fatalf("Fire() error: %v", err)
	}
	if data["output"] != "redacted" {
		t.Fatalf("data[output] = %v, want redacted", data["output"])
	}
}

func TestPipeline_HookErrorStopsChain(t *testing.T) {
	p := NewPipeline(nil)
	secondCalled := false

	p.Register(PointErrorInterception, PriorityHigh, "failing", func(ctx context.Context, data map[string]any) (HookResult, error) {
		return HookResult{}, errors.New("boom")
	})
	p.Register(PointErrorInterception, PriorityLow, "never", func(ctx context.Context, data map[string]any) (HookResult, error) {
		secondCalled = true
		return HookResult{ShouldContinue: true}, nil
	})

	if _, err := p.Fire(context.Background(), PointErrorInterception, map[string]any{}); err == nil {
		t.Fatal("expected error from failing hook")
	}
	if secondCalled {
		t.Fatal("second hook ran after hook error")
	}
}

func TestPipeline_TelemetryCollectionIsFireAndForget(t *testing.T) {
	p := NewPipeline(nil)
	var wg sync.WaitGroup
	wg.Add(1)

	p.Register(PointTelemetryCollection, PriorityNormal, "collector", func(ctx context.Context, data map[string]any) (HookResult, error) {
		defer wg.Done()
		return HookResult{ShouldContinue: false}, nil
	})

	result, err := p.Fire(context.Background(), PointTelemetryCollection, map[string]any{})
	if err != nil {
		t.Fatalf("Fire() error: %v", err)
	}
	if !result.ShouldContinue {
		t.Fatal("telemetry Fire() should always report ShouldContinue = true regardless of hook result")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("telemetry hook never ran")
	}
}

func TestPipeline_UnregisterRemovesHook(t *testing.T) {
	p := NewPipeline(nil)
	called := false
	id := p.Register(PointToolSelection, PriorityNormal, "h", func(ctx context.Context, data map[string]any) (HookResult, error) {
		called = true
		return HookResult{ShouldContinue: true}, nil
	})

	if !p.Unregister(id) {
		t.Fatal("Unregister() = false, want true")
	}
	if p.Unregister(id) {
		t.Fatal("second Unregister() = true, want false")
	}

	if _, err := p.Fire(context.Background(), PointToolSelection, map[string]any{}); err != nil {
		t.Fatalf("Fire() error: %v", err)
	}
	if called {
		t.Fatal("unregistered hook was called")
	}
}

func TestPipeline_NoHooksReturnsContinue(t *testing.T) {
	p := NewPipeline(nil)
	result, err := p.Fire(context.Background(), PointAfterModel, map[string]any{})
	if err != nil {
		t.Fatalf("Fire() error: %v", err)
	}
	if !result.ShouldContinue {
		t.Fatal("ShouldContinue = false with no hooks registered, want true")
	}
}

func TestPipeline_CountReflectsRegistrations(t *testing.T) {
	p := NewPipeline(nil)
	if p.Count(PointBeforeModel) != 0 {
		t.Fatalf("Count() = %d, want 0", p.Count(PointBeforeModel))
	}
	p.Register(PointBeforeModel, PriorityNormal, "a", func(ctx context.Context, data map[string]any) (HookResult, error) {
		return HookResult{ShouldContinue: true}, nil
	})
	p.Register(PointBeforeModel, PriorityNormal, "b", func(ctx context.Context, data map[string]any) (HookResult, error) {
		return HookResult{ShouldContinue: true}, nil
	})
	if p.Count(PointBeforeModel) != 2 {
		t.Fatalf("Count() = %d, want 2", p.Count(PointBeforeModel))
	}
}
