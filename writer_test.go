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
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

func TestJSONWriter(t *testing.T) {
	w := JSONWriter{}

	assert.True(t, w.CanWrite("$.invoice.amount"))
	assert.False(t, w.CanWrite("/Invoice/Amount"))

	t.Run("creates nested structure", func(t *testing.T) {
		dest := model.NewJSONDocument(nil)
		require.NoError(t, w.Write(dest, "$.invoice.amount", "12.50"))
		require.NoError(t, w.Write(dest, "$.invoice.lines[0].sku", "A-1"))

		assert.Equal(t, "12.50", gjson.GetBytes(dest.Raw, "invoice.amount").String())
		assert.Equal(t, "A-1", gjson.GetBytes(dest.Raw, "invoice.lines.0.sku").String())
	})

	t.Run("overwrites existing value", func(t *testing.T) {
		dest := model.NewJSONDocument([]byte(`{"status":"draft"}`))
		require.NoError(t, w.Write(dest, "$.status", "final"))
		assert.Equal(t, "final", gjson.GetBytes(dest.Raw, "status").String())
	})

	t.Run("nil destination", func(t *testing.T) {
		assert.Error(t, w.Write(nil, "$.out", "v"))
	})
}

func TestXMLWriter(t *testing.T) {
	w := XMLWriter{}

	assert.True(t, w.CanWrite("/Invoice/Amount"))
	assert.False(t, w.CanWrite("$.invoice.amount"))

	t.Run("creates root and descendants", func(t *testing.T) {
		dest := etree.NewDocument()
		require.NoError(t, w.Write(dest, "/Invoice/Header/Ref", "r-1"))

		root := dest.Root()
		require.NotNil(t, root)
		assert.Equal(t, "Invoice", root.Tag)
		ref := root.FindElement("Header/Ref")
		require.NotNil(t, ref)
		assert.Equal(t, "r-1", ref.Text())
	})

	t.Run("reuses existing elements", func(t *testing.T) {
		dest := etree.NewDocument()
		require.NoError(t, w.Write(dest, "/Invoice/Id", "i-1"))
		require.NoError(t, w.Write(dest, "/Invoice/Total", "99"))

		root := dest.Root()
		require.NotNil(t, root)
		assert.Len(t, root.ChildElements(), 2)
		assert.Equal(t, "i-1", root.SelectElement("Id").Text())
		assert.Equal(t, "99", root.SelectElement("Total").Text())
	})

	t.Run("root mismatch", func(t *testing.T) {
		dest := etree.NewDocument()
		require.NoError(t, w.Write(dest, "/Invoice/Id", "i-1"))
		assert.Error(t, w.Write(dest, "/Order/Id", "o-1"))
	})

	t.Run("attribute segment sets an attribute", func(t *testing.T) {
		dest := etree.NewDocument()
		require.NoError(t, w.Write(dest, "/Invoice/Line/@sku", "A-1"))

		line := dest.Root().SelectElement("Line")
		require.NotNil(t, line)
		assert.Equal(t, "A-1", line.SelectAttrValue("sku", ""))
		assert.Empty(t, line.Text())
	})

	t.Run("indexed path pads siblings", func(t *testing.T) {
		dest := etree.NewDocument()
		require.NoError(t, w.Write(dest, "/Invoice/Line[1]/Sku", "B-2"))

		lines := dest.Root().SelectElements("Line")
		require.Len(t, lines, 2)
		assert.Equal(t, "B-2", lines[1].SelectElement("Sku").Text())
	})

	t.Run("root-only path sets root text", func(t *testing.T) {
		dest := etree.NewDocument()
		require.NoError(t, w.Write(dest, "/Note", "hello"))
		assert.Equal(t, "hello", dest.Root().Text())
	})

	t.Run("attribute of no element", func(t *testing.T) {
		dest := etree.NewDocument()
		assert.Error(t, w.Write(dest, "/@id", "x"))
	})

	t.Run("nil destination", func(t *testing.T) {
		assert.Error(t, w.Write(nil, "/Invoice/Id", "v"))
	})
}
