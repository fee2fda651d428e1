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
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

type jsonRunContext = model.Context[*model.JSONDocument, *model.JSONDocument]

// Scripted behaviors record their invocations in a shared log so tests can
// assert phase ordering across the whole pipeline.
type scriptedPre struct {
	name  string
	order int
	log   *[]string
	err   error
}

func (b *scriptedPre) Name() string { return b.name }
func (b *scriptedPre) Order() int   { return b.order }
func (b *scriptedPre) Before(_ context.Context, _ *jsonRunContext) error {
	*b.log = append(*b.log, b.name)
	return b.err
}

type scriptedWrap struct {
	name     string
	order    int
	log      *[]string
	panicMsg string
}

func (b *scriptedWrap) Name() string { return b.name }
func (b *scriptedWrap) Order() int   { return b.order }
func (b *scriptedWrap) Around(ctx context.Context, mctx *jsonRunContext, next RunFunc[*model.JSONDocument, *model.JSONDocument]) model.Result {
	if b.panicMsg != "" {
		panic(b.panicMsg)
	}
	*b.log = append(*b.log, b.name+":enter")
	result := next(ctx, mctx)
	*b.log = append(*b.log, b.name+":exit")
	return result
}

type scriptedPost struct {
	name     string
	order    int
	log      *[]string
	err      error
	panicMsg string
	seen     bool
	observed model.Result
}

func (b *scriptedPost) Name() string { return b.name }
func (b *scriptedPost) Order() int   { return b.order }
func (b *scriptedPost) After(_ context.Context, _ *jsonRunContext, result *model.Result) error {
	if b.panicMsg != "" {
		panic(b.panicMsg)
	}
	*b.log = append(*b.log, b.name)
	b.seen = true
	b.observed = *result
	return b.err
}

func newTestRunContext() *jsonRunContext {
	source := model.NewJSONDocument([]byte(`{"a":"1"}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.a", Destination: "$.out"},
	}, source, dest)
	mctx.RequestID = "req_test"
	mctx.MappingName = "orders-to-billing"
	mctx.Endpoint = "orders"
	return mctx
}

func TestPipelineExecute_RunsPhasesInOrder(t *testing.T) {
	var log []string
	pre := []PreRunBehavior[*model.JSONDocument, *model.JSONDocument]{
		&scriptedPre{name: "pre-b", order: 10, log: &log},
		&scriptedPre{name: "pre-a", order: 0, log: &log},
	}
	whole := []WholeRunBehavior[*model.JSONDocument, *model.JSONDocument]{
		&scriptedWrap{name: "inner", order: 5, log: &log},
		&scriptedWrap{name: "outer", order: 0, log: &log},
	}
	post := []PostRunBehavior[*model.JSONDocument, *model.JSONDocument]{
		&scriptedPost{name: "post-b", order: 10, log: &log},
		&scriptedPost{name: "post-a", order: 0, log: &log},
	}
	pipeline := NewPipeline(newJSONEngine(t), pre, whole, post)

	mctx := newTestRunContext()
	result, err := pipeline.Execute(context.Background(), mctx)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsSuccess)
	assert.Equal(t, 1, result.FieldsWritten)
	assert.Equal(t, "1", gjson.GetBytes(mctx.Destination.Raw, "out").String())
	assert.Equal(t, []string{
		"pre-a", "pre-b",
		"outer:enter", "inner:enter", "inner:exit", "outer:exit",
		"post-a", "post-b",
	}, log)
}

func TestPipelineExecute_PreRunErrorAborts(t *testing.T) {
	var log []string
	boom := errors.New("token endpoint down")
	pre := []PreRunBehavior[*model.JSONDocument, *model.JSONDocument]{
		&scriptedPre{name: "first", order: 0, log: &log},
		&scriptedPre{name: "failing", order: 5, log: &log, err: boom},
		&scriptedPre{name: "never", order: 10, log: &log},
	}
	wrap := &scriptedWrap{name: "wrap", order: 0, log: &log}
	after := &scriptedPost{name: "after", order: 0, log: &log}
	pipeline := NewPipeline(newJSONEngine(t),
		pre,
		[]WholeRunBehavior[*model.JSONDocument, *model.JSONDocument]{wrap},
		[]PostRunBehavior[*model.JSONDocument, *model.JSONDocument]{after})

	result, err := pipeline.Execute(context.Background(), newTestRunContext())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "failing"}, log)
	assert.False(t, after.seen)
}

func TestPipelineExecute_PostRunProblemsAreLogOnly(t *testing.T) {
	var log []string
	panicking := &scriptedPost{name: "panicking", order: 0, log: &log, panicMsg: "capture store gone"}
	failing := &scriptedPost{name: "failing", order: 5, log: &log, err: errors.New("sink unavailable")}
	pipeline := NewPipeline(newJSONEngine(t), nil, nil,
		[]PostRunBehavior[*model.JSONDocument, *model.JSONDocument]{panicking, failing})

	result, err := pipeline.Execute(context.Background(), newTestRunContext())

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsSuccess)
	// The panicking behavior was recovered and the one after it still ran.
	assert.Equal(t, []string{"failing"}, log)
	assert.True(t, failing.seen)
}

func TestPipelineExecute_PanicSynthesizesFailure(t *testing.T) {
	var log []string
	after := &scriptedPost{name: "after", order: 0, log: &log}
	pipeline := NewPipeline(newJSONEngine(t), nil,
		[]WholeRunBehavior[*model.JSONDocument, *model.JSONDocument]{&scriptedWrap{name: "broken", order: 0, log: &log, panicMsg: "wrapper exploded"}},
		[]PostRunBehavior[*model.JSONDocument, *model.JSONDocument]{after})

	result, err := pipeline.Execute(context.Background(), newTestRunContext())

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsSuccess)
	assert.Contains(t, result.ErrorMessage, "pipeline panic")
	assert.Contains(t, result.ErrorMessage, "wrapper exploded")
	// Post-run behaviors still observe the synthesized outcome.
	require.True(t, after.seen)
	assert.False(t, after.observed.IsSuccess)
}

func TestTimingBehavior_AnnotatesElapsed(t *testing.T) {
	pipeline := NewPipeline(newJSONEngine(t), nil,
		[]WholeRunBehavior[*model.JSONDocument, *model.JSONDocument]{TimingBehavior[*model.JSONDocument, *model.JSONDocument]{}},
		nil)

	result, err := pipeline.Execute(context.Background(), newTestRunContext())

	require.NoError(t, err)
	require.NotNil(t, result)
	elapsed, ok := result.Properties[PropElapsedMS]
	require.True(t, ok)
	ms, convErr := strconv.Atoi(elapsed)
	assert.NoError(t, convErr)
	assert.GreaterOrEqual(t, ms, 0)
}

func TestValidationBehavior(t *testing.T) {
	behavior := ValidationBehavior[*model.JSONDocument, *model.JSONDocument]{}

	t.Run("valid context passes", func(t *testing.T) {
		assert.NoError(t, behavior.Before(context.Background(), newTestRunContext()))
	})

	t.Run("no field mappings", func(t *testing.T) {
		mctx := newTestRunContext()
		mctx.Mappings = nil
		err := behavior.Before(context.Background(), mctx)
		var apiErr apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
	})

	t.Run("nil source payload", func(t *testing.T) {
		mctx := newTestRunContext()
		mctx.Source = nil
		err := behavior.Before(context.Background(), mctx)
		var apiErr apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
	})
}

func TestAuthTokenBehavior_SkipsWithoutAuthConfig(t *testing.T) {
	behavior := NewAuthTokenBehavior[*model.JSONDocument, *model.JSONDocument](NewTokenCache(&config.Configuration{}))

	mctx := newTestRunContext()
	require.NoError(t, behavior.Before(context.Background(), mctx))
	_, ok := mctx.GetProperty(PropAuthorization)
	assert.False(t, ok)

	mctx.Auth = &model.AuthConfig{}
	require.NoError(t, behavior.Before(context.Background(), mctx))
	_, ok = mctx.GetProperty(PropAuthorization)
	assert.False(t, ok)
}

type sinkSpy struct {
	captures []*model.MessageCapture
	err      error
}

func (s *sinkSpy) Record(_ context.Context, capture *model.MessageCapture) error {
	s.captures = append(s.captures, capture)
	return s.err
}

func TestCaptureBehavior_SnapshotsRun(t *testing.T) {
	sink := &sinkSpy{}
	render := func(doc *model.JSONDocument) string {
		if doc == nil {
			return ""
		}
		return doc.String()
	}
	behavior := NewCaptureBehavior[*model.JSONDocument, *model.JSONDocument](sink, model.PayloadJSON, render, render)

	mctx := newTestRunContext()
	result := model.Success(3, 2, 1)
	result.SetProperty(PropElapsedMS, "42")

	require.NoError(t, behavior.After(context.Background(), mctx, &result))

	require.Len(t, sink.captures, 1)
	capture := sink.captures[0]
	assert.True(t, strings.HasPrefix(capture.CaptureID, "cap_"))
	assert.Equal(t, "orders-to-billing", capture.MappingName)
	assert.Equal(t, "orders", capture.Endpoint)
	assert.Equal(t, model.PayloadJSON, capture.SourceType)
	assert.Equal(t, `{"a":"1"}`, capture.SourcePayload)
	assert.Equal(t, "{}", capture.MappedPayload)
	assert.True(t, capture.IsSuccess)
	assert.Equal(t, int64(42), capture.DurationMs)
	assert.Equal(t, "req_test", capture.MetaData["request_id"])
}

func TestCaptureBehavior_NilSinkIsNoOp(t *testing.T) {
	behavior := NewCaptureBehavior[*model.JSONDocument, *model.JSONDocument](nil, model.PayloadJSON, nil, nil)
	result := model.Success(0, 0, 0)
	assert.NoError(t, behavior.After(context.Background(), newTestRunContext(), &result))
}

func TestHookBehaviors_NilManagerIsNoOp(t *testing.T) {
	pre := NewPreHookBehavior[*model.JSONDocument, *model.JSONDocument](nil, func(*model.JSONDocument) string { return "" })
	assert.NoError(t, pre.Before(context.Background(), newTestRunContext()))

	post := NewPostHookBehavior[*model.JSONDocument, *model.JSONDocument](nil)
	result := model.Success(0, 0, 0)
	assert.NoError(t, post.After(context.Background(), newTestRunContext(), &result))
}
