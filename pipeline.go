/*
Copyright 2025 QuickApiMapper Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package mapper

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// PreRunBehavior runs before anything else, ascending by Order. An error from
// Before aborts the whole call immediately and propagates to the caller
// untouched; no Result is produced and nothing after it runs.
type PreRunBehavior[S, D any] interface {
	Name() string
	Order() int
	Before(ctx context.Context, mctx *model.Context[S, D]) error
}

// RunFunc is the continuation a whole-run behavior invokes to run the rest of
// the pipeline.
type RunFunc[S, D any] func(ctx context.Context, mctx *model.Context[S, D]) model.Result

// WholeRunBehavior wraps the core loop like middleware; the lowest Order is
// the outermost wrapper. Around must invoke next, or decline to, and may
// inspect or replace the Result before returning it.
type WholeRunBehavior[S, D any] interface {
	Name() string
	Order() int
	Around(ctx context.Context, mctx *model.Context[S, D], next RunFunc[S, D]) model.Result
}

// PostRunBehavior observes the finalized Result, ascending by Order. Errors
// and panics from After are logged and never alter the outcome or propagate.
// Post-run behaviors run even when the core produced a failure.
type PostRunBehavior[S, D any] interface {
	Name() string
	Order() int
	After(ctx context.Context, mctx *model.Context[S, D], result *model.Result) error
}

// Pipeline composes the three behavior phases around an engine for one
// (source type, destination type) pair. The whole-run middleware chain is
// built once here at construction and reused by every call.
type Pipeline[S, D any] struct {
	preRun  []PreRunBehavior[S, D]
	postRun []PostRunBehavior[S, D]
	chain   RunFunc[S, D]
}

// NewPipeline sorts the behavior lists and builds the whole-run chain around
// the engine's core loop.
func NewPipeline[S, D any](engine *Engine[S, D], pre []PreRunBehavior[S, D], whole []WholeRunBehavior[S, D], post []PostRunBehavior[S, D]) *Pipeline[S, D] {
	p := &Pipeline[S, D]{}

	p.preRun = append(p.preRun, pre...)
	sort.SliceStable(p.preRun, func(i, j int) bool { return p.preRun[i].Order() < p.preRun[j].Order() })

	p.postRun = append(p.postRun, post...)
	sort.SliceStable(p.postRun, func(i, j int) bool { return p.postRun[i].Order() < p.postRun[j].Order() })

	wrappers := append([]WholeRunBehavior[S, D]{}, whole...)
	sort.SliceStable(wrappers, func(i, j int) bool { return wrappers[i].Order() < wrappers[j].Order() })

	chain := RunFunc[S, D](func(ctx context.Context, mctx *model.Context[S, D]) model.Result {
		return engine.Apply(ctx, mctx)
	})
	// Wrap inside-out so the lowest order ends up outermost.
	for i := len(wrappers) - 1; i >= 0; i-- {
		b, next := wrappers[i], chain
		chain = func(ctx context.Context, mctx *model.Context[S, D]) model.Result {
			return b.Around(ctx, mctx, next)
		}
	}
	p.chain = chain

	return p
}

// Execute runs one mapping call through the composed pipeline. A pre-run
// error returns with a nil Result; everything inside the whole-run chain is
// converted to a Result, synthesizing a failure on panic; post-run problems
// are logged only.
func (p *Pipeline[S, D]) Execute(ctx context.Context, mctx *model.Context[S, D]) (*model.Result, error) {
	ctx, span := tracer.Start(ctx, "Mapping pipeline")
	defer span.End()

	for _, b := range p.preRun {
		if err := b.Before(ctx, mctx); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	result := p.run(ctx, mctx)

	for _, b := range p.postRun {
		p.afterOne(ctx, b, mctx, &result)
	}

	return &result, nil
}

// run executes the whole-run chain, recovering a panic anywhere inside it
// into a failure result so post-run behaviors still observe an outcome.
func (p *Pipeline[S, D]) run(ctx context.Context, mctx *model.Context[S, D]) (result model.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.Errorf("pipeline panic recovered: %v", rec)
			result = model.Failure(fmt.Errorf("pipeline panic: %v", rec))
		}
	}()
	return p.chain(ctx, mctx)
}

func (p *Pipeline[S, D]) afterOne(ctx context.Context, b PostRunBehavior[S, D], mctx *model.Context[S, D], result *model.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithField("behavior", b.Name()).Errorf("post-run behavior panicked: %v", rec)
		}
	}()
	if err := b.After(ctx, mctx, result); err != nil {
		logrus.WithFields(logrus.Fields{
			"behavior": b.Name(),
			"error":    err,
		}).Warn("post-run behavior failed")
	}
}
