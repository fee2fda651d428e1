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
	"reflect"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/hooks"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// Property keys behaviors use to pass values through the context and result.
const (
	PropAuthorization = "authorization"
	PropElapsedMS     = "elapsed_ms"
)

// ValidationBehavior rejects a call that cannot possibly map: no field
// mappings or no source payload at all. It runs first among the pre-run
// behaviors, so broken contexts surface as an immediate error to the caller
// instead of an empty success.
type ValidationBehavior[S, D any] struct{}

func (ValidationBehavior[S, D]) Name() string { return "validation" }
func (ValidationBehavior[S, D]) Order() int   { return 0 }

func (ValidationBehavior[S, D]) Before(_ context.Context, mctx *model.Context[S, D]) error {
	if len(mctx.Mappings) == 0 {
		return apierror.NewAPIError(apierror.ErrBadRequest, "mapping has no field mappings", nil)
	}
	if isNilValue(mctx.Source) {
		return apierror.NewAPIError(apierror.ErrBadRequest, "mapping call has no source payload", nil)
	}
	return nil
}

// isNilValue reports whether a generic payload value is a typed or untyped
// nil. The source and destination types are pointers in every wired pipeline.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// AuthTokenBehavior acquires a bearer token for integrations that declare an
// auth config and parks it in the context properties for the dispatcher. A
// token fetch failure aborts the call before any field is mapped.
type AuthTokenBehavior[S, D any] struct {
	tokens *TokenCache
}

func NewAuthTokenBehavior[S, D any](tokens *TokenCache) *AuthTokenBehavior[S, D] {
	return &AuthTokenBehavior[S, D]{tokens: tokens}
}

func (b *AuthTokenBehavior[S, D]) Name() string { return "auth-token" }
func (b *AuthTokenBehavior[S, D]) Order() int   { return 10 }

func (b *AuthTokenBehavior[S, D]) Before(ctx context.Context, mctx *model.Context[S, D]) error {
	if mctx.Auth == nil || mctx.Auth.TokenURL == "" {
		return nil
	}
	token, err := b.tokens.Token(ctx, mctx.Auth)
	if err != nil {
		return err
	}
	mctx.SetProperty(PropAuthorization, "Bearer "+token)
	return nil
}

// PreHookBehavior fires registered pre-mapping webhooks with the inbound
// payload. Hook problems are logged, never fatal; remote observers must not
// be able to take mapping down.
type PreHookBehavior[S, D any] struct {
	hooks        hooks.HookManager
	renderSource func(S) string
}

func NewPreHookBehavior[S, D any](manager hooks.HookManager, renderSource func(S) string) *PreHookBehavior[S, D] {
	return &PreHookBehavior[S, D]{hooks: manager, renderSource: renderSource}
}

func (b *PreHookBehavior[S, D]) Name() string { return "pre-hooks" }
func (b *PreHookBehavior[S, D]) Order() int   { return 20 }

func (b *PreHookBehavior[S, D]) Before(ctx context.Context, mctx *model.Context[S, D]) error {
	if b.hooks == nil {
		return nil
	}
	payload := map[string]string{
		"request_id": mctx.RequestID,
		"endpoint":   mctx.Endpoint,
		"payload":    b.renderSource(mctx.Source),
	}
	if err := b.hooks.ExecutePreHooks(ctx, mctx.MappingName, payload); err != nil {
		logrus.WithFields(logrus.Fields{"mapping": mctx.MappingName, "error": err}).Warn("pre-mapping hooks failed")
	}
	return nil
}

// TracingBehavior is the outermost whole-run wrapper. It opens a span around
// the rest of the pipeline and records the outcome on it.
type TracingBehavior[S, D any] struct{}

func (TracingBehavior[S, D]) Name() string { return "tracing" }
func (TracingBehavior[S, D]) Order() int   { return 0 }

func (TracingBehavior[S, D]) Around(ctx context.Context, mctx *model.Context[S, D], next RunFunc[S, D]) model.Result {
	ctx, span := tracer.Start(ctx, "Mapping run")
	defer span.End()
	span.SetAttributes(
		attribute.String("mapping.name", mctx.MappingName),
		attribute.String("mapping.endpoint", mctx.Endpoint),
		attribute.String("mapping.request_id", mctx.RequestID),
	)

	result := next(ctx, mctx)

	span.SetAttributes(
		attribute.Int("mapping.fields_processed", result.FieldsProcessed),
		attribute.Int("mapping.fields_written", result.FieldsWritten),
		attribute.Int("mapping.fields_skipped", result.FieldsSkipped),
	)
	if !result.IsSuccess {
		span.SetStatus(codes.Error, result.ErrorMessage)
		if result.Err != nil {
			span.RecordError(result.Err)
		}
	}
	return result
}

// TimingBehavior measures the wrapped run and annotates the result with the
// elapsed wall-clock milliseconds.
type TimingBehavior[S, D any] struct{}

func (TimingBehavior[S, D]) Name() string { return "timing" }
func (TimingBehavior[S, D]) Order() int   { return 5 }

func (TimingBehavior[S, D]) Around(ctx context.Context, mctx *model.Context[S, D], next RunFunc[S, D]) model.Result {
	start := time.Now()
	result := next(ctx, mctx)
	result.SetProperty(PropElapsedMS, strconv.FormatInt(time.Since(start).Milliseconds(), 10))
	return result
}

// CaptureSink receives the capture snapshot of a finished mapping run.
// Implemented by the capture service; kept as an interface so pipelines can
// be built without one in tests.
type CaptureSink interface {
	Record(ctx context.Context, capture *model.MessageCapture) error
}

// CaptureBehavior snapshots the source and destination payloads of every run,
// success or failure, into a MessageCapture and hands it to the sink. Runs as
// a post-run behavior, so capture trouble can only ever cost the snapshot.
type CaptureBehavior[S, D any] struct {
	sink         CaptureSink
	sourceType   model.PayloadType
	renderSource func(S) string
	renderDest   func(D) string
}

func NewCaptureBehavior[S, D any](sink CaptureSink, sourceType model.PayloadType, renderSource func(S) string, renderDest func(D) string) *CaptureBehavior[S, D] {
	return &CaptureBehavior[S, D]{
		sink:         sink,
		sourceType:   sourceType,
		renderSource: renderSource,
		renderDest:   renderDest,
	}
}

func (b *CaptureBehavior[S, D]) Name() string { return "capture" }
func (b *CaptureBehavior[S, D]) Order() int   { return 0 }

func (b *CaptureBehavior[S, D]) After(ctx context.Context, mctx *model.Context[S, D], result *model.Result) error {
	if b.sink == nil {
		return nil
	}

	capture := &model.MessageCapture{
		CaptureID:     model.GenerateUUIDWithSuffix("cap"),
		MappingName:   mctx.MappingName,
		Endpoint:      mctx.Endpoint,
		SourceType:    b.sourceType,
		SourcePayload: b.renderSource(mctx.Source),
		MappedPayload: b.renderDest(mctx.Destination),
		IsSuccess:     result.IsSuccess,
		ErrorMessage:  result.ErrorMessage,
		CreatedAt:     time.Now(),
		MetaData:      map[string]interface{}{"request_id": mctx.RequestID},
	}
	if ms, ok := result.Properties[PropElapsedMS]; ok {
		capture.DurationMs, _ = strconv.ParseInt(ms, 10, 64)
	}
	return b.sink.Record(ctx, capture)
}

// PostHookBehavior fires registered post-mapping webhooks with the finalized
// result. The pipeline logs any error it returns.
type PostHookBehavior[S, D any] struct {
	hooks hooks.HookManager
}

func NewPostHookBehavior[S, D any](manager hooks.HookManager) *PostHookBehavior[S, D] {
	return &PostHookBehavior[S, D]{hooks: manager}
}

func (b *PostHookBehavior[S, D]) Name() string { return "post-hooks" }
func (b *PostHookBehavior[S, D]) Order() int   { return 10 }

func (b *PostHookBehavior[S, D]) After(ctx context.Context, mctx *model.Context[S, D], result *model.Result) error {
	if b.hooks == nil {
		return nil
	}
	payload := map[string]interface{}{
		"request_id": mctx.RequestID,
		"endpoint":   mctx.Endpoint,
		"result":     result,
	}
	return b.hooks.ExecutePostHooks(ctx, mctx.MappingName, payload)
}
