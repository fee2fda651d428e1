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
	"github.com/tidwall/gjson"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// Resolver extracts a string value from a source tree given a path
// expression. CanResolve reports whether the path's prefix belongs to this
// resolver. Resolve reports whether a value was found; a not-found falls
// through to the next claiming resolver, a returned error fails the whole
// mapping call.
type Resolver[S any] interface {
	CanResolve(path string) bool
	Resolve(source S, statics map[string]string, path string) (string, bool, error)
}

// StaticResolver serves "$$." references from the merged static dictionaries.
// It is registered ahead of the source resolvers on every engine, so a static
// reference always wins over querying the payload. A missing key is a
// not-found, never an error.
type StaticResolver[S any] struct{}

func (StaticResolver[S]) CanResolve(path string) bool {
	return strings.HasPrefix(path, model.PrefixStatic)
}

func (StaticResolver[S]) Resolve(_ S, statics map[string]string, path string) (string, bool, error) {
	value, ok := statics[strings.TrimPrefix(path, model.PrefixStatic)]
	return value, ok, nil
}

// JSONResolver reads "$." paths out of a JSON source document.
type JSONResolver struct{}

func (JSONResolver) CanResolve(path string) bool {
	return strings.HasPrefix(path, model.PrefixJSON)
}

func (JSONResolver) Resolve(source *model.JSONDocument, _ map[string]string, path string) (string, bool, error) {
	if source == nil {
		return "", false, fmt.Errorf("nil json source for path %q", path)
	}
	result := gjson.GetBytes(source.Raw, jsonPath(path))
	if !result.Exists() {
		return "", false, nil
	}
	return result.String(), true, nil
}

// XMLResolver reads "/" element and attribute paths out of an XML source
// tree. The first path segment names the document root; a root name mismatch
// is a not-found, not an error, so payloads with an unexpected shape degrade
// to unpopulated fields.
type XMLResolver struct{}

func (XMLResolver) CanResolve(path string) bool {
	return strings.HasPrefix(path, model.PrefixXML)
}

func (XMLResolver) Resolve(source *etree.Document, _ map[string]string, path string) (string, bool, error) {
	if source == nil || source.Root() == nil {
		return "", false, fmt.Errorf("nil xml source for path %q", path)
	}

	segments, err := parseXMLSegments(path)
	if err != nil {
		return "", false, err
	}
	if segments[0].Attr {
		return "", false, fmt.Errorf("xml path %q selects an attribute of no element", path)
	}

	current := source.Root()
	if !matchXMLElement(current, segments[0]) || segments[0].Index != 0 {
		return "", false, nil
	}
	for _, seg := range segments[1:] {
		if seg.Attr {
			attr := current.SelectAttr(seg.Name)
			if attr == nil {
				return "", false, nil
			}
			return attr.Value, true, nil
		}
		if current = findXMLChild(current, seg); current == nil {
			return "", false, nil
		}
	}
	return current.Text(), true, nil
}
