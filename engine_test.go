package mapper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
	"github.com/JerrettDavis/QuickApiMapper-sub001/transform"
)

// stubResolver claims paths carrying a fixed prefix and replays a scripted
// answer, counting how often the engine consulted it.
type stubResolver struct {
	prefix   string
	value    string
	found    bool
	err      error
	panicMsg string
	calls    int
}

func (r *stubResolver) CanResolve(path string) bool { return strings.HasPrefix(path, r.prefix) }

func (r *stubResolver) Resolve(_ *model.JSONDocument, _ map[string]string, _ string) (string, bool, error) {
	r.calls++
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	return r.value, r.found, r.err
}

func newTestRegistry(t *testing.T) *transform.Registry {
	registry, err := transform.NewDefaultRegistry()
	require.NoError(t, err)
	return registry
}

func newJSONEngine(t *testing.T, extra ...Resolver[*model.JSONDocument]) *Engine[*model.JSONDocument, *model.JSONDocument] {
	resolvers := []Resolver[*model.JSONDocument]{StaticResolver[*model.JSONDocument]{}, JSONResolver{}}
	resolvers = append(resolvers, extra...)
	return NewEngine(newTestRegistry(t), resolvers, []Writer[*model.JSONDocument]{JSONWriter{}})
}

func TestEngineApply_MapsNestedJSON(t *testing.T) {
	engine := newJSONEngine(t)
	source := model.NewJSONDocument([]byte(`{"a":{"b":"x"}}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.a.b", Destination: "$.out"},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, 1, result.FieldsProcessed)
	assert.Equal(t, 1, result.FieldsWritten)
	assert.Equal(t, 0, result.FieldsSkipped)
	assert.Equal(t, "x", gjson.GetBytes(dest.Raw, "out").String())
}

func TestEngineApply_BracketedArrayPaths(t *testing.T) {
	engine := newJSONEngine(t)
	source := model.NewJSONDocument([]byte(`{"items":[{"sku":"A-1"},{"sku":"B-2"}]}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.items[1].sku", Destination: "$.lines[0].sku"},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, "B-2", gjson.GetBytes(dest.Raw, "lines.0.sku").String())
}

func TestEngineApply_StaticReferences(t *testing.T) {
	engine := newJSONEngine(t)
	source := model.NewJSONDocument([]byte(`{"channel":"payload"}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$$.channel", Destination: "$.channel"},
		{Source: "$$.company", Destination: "$.company"},
		{Source: "$$.missing", Destination: "$.missing"},
	}, source, dest)
	mctx.GlobalStatics = map[string]string{"channel": "global", "company": "Acme"}
	mctx.StaticValues = map[string]string{"channel": "portal"}

	result := engine.Apply(context.Background(), mctx)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, 3, result.FieldsProcessed)
	assert.Equal(t, 2, result.FieldsWritten)
	assert.Equal(t, 1, result.FieldsSkipped)
	// The integration dictionary wins over the global one, and the payload
	// value is never consulted for a "$$." reference.
	assert.Equal(t, "portal", gjson.GetBytes(dest.Raw, "channel").String())
	assert.Equal(t, "Acme", gjson.GetBytes(dest.Raw, "company").String())
	assert.False(t, gjson.GetBytes(dest.Raw, "missing").Exists())
}

func TestEngineApply_EmptyDestinationSkipsResolution(t *testing.T) {
	spy := &stubResolver{prefix: "$.", value: "v", found: true}
	engine := NewEngine(newTestRegistry(t),
		[]Resolver[*model.JSONDocument]{spy},
		[]Writer[*model.JSONDocument]{JSONWriter{}})

	source := model.NewJSONDocument([]byte(`{"a":"1"}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.a", Destination: ""},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, 1, result.FieldsProcessed)
	assert.Equal(t, 0, result.FieldsWritten)
	assert.Equal(t, 1, result.FieldsSkipped)
	assert.Zero(t, spy.calls)
}

func TestEngineApply_UnresolvedFieldSkips(t *testing.T) {
	engine := newJSONEngine(t)
	source := model.NewJSONDocument([]byte(`{"a":"1"}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.nope", Destination: "$.out"},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, 1, result.FieldsProcessed)
	assert.Equal(t, 0, result.FieldsWritten)
	assert.Equal(t, 1, result.FieldsSkipped)
	assert.Equal(t, "{}", dest.String())
}

func TestEngineApply_TransformerChain(t *testing.T) {
	engine := newJSONEngine(t)
	source := model.NewJSONDocument([]byte(`{"name":"  ada lovelace "}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.name", Destination: "$.name", Transformers: []model.TransformerConfig{
			{Name: "trim"},
			{Name: "uppercase"},
			{Name: "prepend", Args: map[string]string{"value": "DR "}},
		}},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, "DR ADA LOVELACE", gjson.GetBytes(dest.Raw, "name").String())
}

func TestEngineApply_UnknownTransformerKeepsValue(t *testing.T) {
	engine := newJSONEngine(t)
	source := model.NewJSONDocument([]byte(`{"name":"ada"}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.name", Destination: "$.name", Transformers: []model.TransformerConfig{
			{Name: "sparkle"},
			{Name: "uppercase"},
		}},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, 1, result.FieldsWritten)
	assert.Equal(t, "ADA", gjson.GetBytes(dest.Raw, "name").String())
}

func TestEngineApply_ResolverErrorFailsRun(t *testing.T) {
	broken := &stubResolver{prefix: "boom:", err: errors.New("source offline")}
	engine := newJSONEngine(t, broken)

	source := model.NewJSONDocument([]byte(`{"a":"1","c":"3"}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.a", Destination: "$.first"},
		{Source: "boom:x", Destination: "$.second"},
		{Source: "$.c", Destination: "$.third"},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.False(t, result.IsSuccess)
	assert.Contains(t, result.ErrorMessage, "source offline")
	assert.Equal(t, 2, result.FieldsProcessed)
	assert.Equal(t, 1, result.FieldsWritten)
	assert.Equal(t, 0, result.FieldsSkipped)
	// Writes made before the failure stay in the destination, the field after
	// it was never reached.
	assert.Equal(t, "1", gjson.GetBytes(dest.Raw, "first").String())
	assert.False(t, gjson.GetBytes(dest.Raw, "third").Exists())
}

func TestEngineApply_WriterProblemsSkipField(t *testing.T) {
	t.Run("no writer claims the destination", func(t *testing.T) {
		engine := newJSONEngine(t)
		source := model.NewJSONDocument([]byte(`{"a":"1"}`))
		dest := model.NewJSONDocument(nil)
		mctx := model.NewContext([]model.FieldMapping{
			{Source: "$.a", Destination: "/Order/Id"},
		}, source, dest)

		result := engine.Apply(context.Background(), mctx)

		assert.True(t, result.IsSuccess)
		assert.Equal(t, 1, result.FieldsSkipped)
		assert.Equal(t, "{}", dest.String())
	})

	t.Run("writer error", func(t *testing.T) {
		engine := newJSONEngine(t)
		source := model.NewJSONDocument([]byte(`{"a":"1"}`))
		mctx := model.NewContext([]model.FieldMapping{
			{Source: "$.a", Destination: "$.out"},
		}, source, (*model.JSONDocument)(nil))

		result := engine.Apply(context.Background(), mctx)

		assert.True(t, result.IsSuccess)
		assert.Equal(t, 0, result.FieldsWritten)
		assert.Equal(t, 1, result.FieldsSkipped)
	})
}

func TestEngineApply_CancelledContext(t *testing.T) {
	engine := newJSONEngine(t)
	source := model.NewJSONDocument([]byte(`{"a":"1"}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.a", Destination: "$.one"},
		{Source: "$.a", Destination: "$.two"},
	}, source, dest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := engine.Apply(ctx, mctx)

	assert.False(t, result.IsSuccess)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 0, result.FieldsProcessed)
	assert.Equal(t, "{}", dest.String())
}

func TestEngineApply_PanicIsRecovered(t *testing.T) {
	engine := NewEngine(newTestRegistry(t),
		[]Resolver[*model.JSONDocument]{&stubResolver{prefix: "$.", panicMsg: "resolver exploded"}},
		[]Writer[*model.JSONDocument]{JSONWriter{}})

	source := model.NewJSONDocument([]byte(`{"a":"1"}`))
	dest := model.NewJSONDocument(nil)
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.a", Destination: "$.out"},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.False(t, result.IsSuccess)
	assert.Contains(t, result.ErrorMessage, "mapping panic")
	assert.Contains(t, result.ErrorMessage, "resolver exploded")
}

func TestEngineApply_XMLDestination(t *testing.T) {
	engine := NewEngine(newTestRegistry(t),
		[]Resolver[*model.JSONDocument]{StaticResolver[*model.JSONDocument]{}, JSONResolver{}},
		[]Writer[*etree.Document]{XMLWriter{}})

	source := model.NewJSONDocument([]byte(`{"order":{"id":"o-77","ref":"r-9"}}`))
	dest := etree.NewDocument()
	mctx := model.NewContext([]model.FieldMapping{
		{Source: "$.order.id", Destination: "/Order/Id"},
		{Source: "$.order.ref", Destination: "/Order/@ref"},
	}, source, dest)

	result := engine.Apply(context.Background(), mctx)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, 2, result.FieldsWritten)
	root := dest.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Order", root.Tag)
	id := root.SelectElement("Id")
	require.NotNil(t, id)
	assert.Equal(t, "o-77", id.Text())
	assert.Equal(t, "r-9", root.SelectAttrValue("ref", ""))
}
