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
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/tidwall/sjson"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// Writer places a string value into a destination tree at a path expression,
// creating missing intermediate structure. A Write error degrades the field
// to a skip; it never aborts the mapping call.
type Writer[D any] interface {
	CanWrite(path string) bool
	Write(dest D, path, value string) error
}

// JSONWriter writes "$." paths into a JSON destination document. sjson
// creates missing intermediate objects and array slots on the way down.
type JSONWriter struct{}

func (JSONWriter) CanWrite(path string) bool {
	return strings.HasPrefix(path, model.PrefixJSON)
}

func (JSONWriter) Write(dest *model.JSONDocument, path, value string) error {
	if dest == nil {
		return fmt.Errorf("nil json destination for path %q", path)
	}
	raw, err := sjson.SetBytes(dest.Raw, jsonPath(path), value)
	if err != nil {
		return err
	}
	dest.Raw = raw
	return nil
}

// XMLWriter writes "/" element and attribute paths into an XML destination
// tree. The first path segment names the document root, created when the
// document is still empty; missing elements along the rest of the path are
// created as the walk descends. A final "@name" segment sets an attribute on
// the element reached so far instead of element text.
type XMLWriter struct{}

func (XMLWriter) CanWrite(path string) bool {
	return strings.HasPrefix(path, model.PrefixXML)
}

func (XMLWriter) Write(dest *etree.Document, path, value string) error {
	if dest == nil {
		return fmt.Errorf("nil xml destination for path %q", path)
	}

	segments, err := parseXMLSegments(path)
	if err != nil {
		return err
	}
	if segments[0].Attr {
		return fmt.Errorf("xml path %q selects an attribute of no element", path)
	}

	current := dest.Root()
	if current == nil {
		current = dest.CreateElement(segments[0].Tag())
	} else if !matchXMLElement(current, segments[0]) {
		return fmt.Errorf("xml path %q does not match document root %q", path, current.Tag)
	}
	for _, seg := range segments[1:] {
		if seg.Attr {
			current.CreateAttr(seg.Name, value)
			return nil
		}
		current = findOrCreateXMLChild(current, seg)
	}
	current.SetText(value)
	return nil
}
