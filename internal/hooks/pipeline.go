package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Point identifies a point in the agent request/tool pipeline where
// pipeline hooks can observe or rewrite data.
type Point string

const (
	PointBeforeModel         Point = "before_model"
	PointAfterModel          Point = "after_model"
	PointBeforeTool          Point = "before_tool"
	PointAfterTool           Point = "after_tool"
	PointToolSelection       Point = "tool_selection"
	PointErrorInterception   Point = "error_interception"
	PointTelemetryCollection Point = "telemetry_collection"
)

// HookResult is what a pipeline hook returns. ShouldContinue false stops
// the remaining hooks at this point and the caller receives the failure,
// except at PointTelemetryCollection, which is fire-and-forget and never
// blocks on or inspects results.
type HookResult struct {
	ShouldContinue bool
	Message        string
	ModifiedData   map[string]any
}

// continueResult is the default result a hook need not construct by hand.
func continueResult() HookResult {
	return HookResult{ShouldContinue: true}
}

// PipelineHook runs at a Point. data carries the point's payload (e.g. the
// model request at PointBeforeModel, the tool result at PointAfterTool);
// ModifiedData returned in the result is merged into it by the caller.
type PipelineHook func(ctx context.Context, data map[string]any) (HookResult, error)

type pipelineRegistration struct {
	id       string
	point    Point
	priority Priority
	name     string
	hook     PipelineHook
}

// Pipeline maintains a priority-sorted hook list per Point and fires them
// in order, short-circuiting on the first ShouldContinue == false.
type Pipeline struct {
	mu     sync.RWMutex
	hooks  map[Point][]*pipelineRegistration
	byID   map[string]*pipelineRegistration
	logger *slog.Logger
	nextID int
}

// NewPipeline creates an empty Pipeline.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		hooks:  make(map[Point][]*pipelineRegistration),
		byID:   make(map[string]*pipelineRegistration),
		logger: logger.With("component", "hooks.pipeline"),
	}
}

// Register adds hook at point with priority (lower runs first) and
// returns an id usable with Unregister.
func (p *Pipeline) Register(point Point, priority Priority, name string, hook PipelineHook) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	reg := &pipelineRegistration{
		id:       fmt.Sprintf("%s-%d", point, p.nextID),
		point:    point,
		priority: priority,
		name:     name,
		hook:     hook,
	}
	p.hooks[point] = append(p.hooks[point], reg)
	sort.Slice(p.hooks[point], func(i, j int) bool {
		return p.hooks[point][i].priority < p.hooks[point][j].priority
	})
	p.byID[reg.id] = reg
	return reg.id
}

// Unregister removes a hook by id. Returns false if the id was unknown.
func (p *Pipeline) Unregister(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.byID[id]
	if !ok {
		return false
	}
	delete(p.byID, id)

	list := p.hooks[reg.point]
	for i, r := range list {
		if r.id == id {
			p.hooks[reg.point] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return true
}

// Fire runs every hook registered at point, in priority order, merging
// each ModifiedData into data as it goes. It stops at the first hook that
// returns ShouldContinue == false and returns that result. At
// PointTelemetryCollection hooks run fire-and-forget: Fire dispatches them
// in a goroutine and always returns an immediate ShouldContinue result
// without waiting or merging.
func (p *Pipeline) Fire(ctx context.Context, point Point, data map[string]any) (HookResult, error) {
	p.mu.RLock()
	list := make([]*pipelineRegistration, len(p.hooks[point]))
	copy(list, p.hooks[point])
	p.mu.RUnlock()

	if point == PointTelemetryCollection {
		p.fireTelemetryAsync(list, data)
		return continueResult(), nil
	}

	for _, reg := range list {
		result, err := p.callHook(ctx, reg, data)
		if err != nil {
			p.logger.Warn("pipeline hook error", "point", point, "hook", reg.name, "error", err)
			return HookResult{}, fmt.Errorf("hooks: %s hook %q: %w", point, reg.name, err)
		}
		for k, v := range result.ModifiedData {
			data[k] = v
		}
		if !result.ShouldContinue {
			p.logger.Debug("pipeline hook stopped chain", "point", point, "hook", reg.name, "message", result.Message)
			return result, nil
		}
	}
	return continueResult(), nil
}

func (p *Pipeline) fireTelemetryAsync(list []*pipelineRegistration, data map[string]any) {
	snapshot := make(map[string]any, len(data))
	for k, v := range data {
		snapshot[k] = v
	}
	go func() {
		for _, reg := range list {
			if _, err := reg.hook(context.Background(), snapshot); err != nil {
				p.logger.Warn("telemetry hook error", "hook", reg.name, "error", err)
			}
		}
	}()
}

func (p *Pipeline) callHook(ctx context.Context, reg *pipelineRegistration, data map[string]any) (result HookResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	return reg.hook(ctx, data)
}

// Count returns the number of hooks registered at point.
func (p *Pipeline) Count(point Point) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.hooks[point])
}
