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
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// xmlSegment is one step of a slash-separated element path. A segment selects
// an element by local name, optionally narrowed by a namespace prefix and a
// 0-based position among same-named siblings, or an attribute of the element
// reached so far when Attr is set.
type xmlSegment struct {
	Prefix string
	Name   string
	Index  int
	Attr   bool
}

// Tag returns the segment's element tag in etree's "prefix:name" form.
func (s xmlSegment) Tag() string {
	if s.Prefix != "" {
		return s.Prefix + ":" + s.Name
	}
	return s.Name
}

// parseXMLSegments splits an XML path expression into its segments. The
// leading slash is optional so the same parser serves full paths ("/root/a")
// and envelope-relative locations ("Security/Username"). An attribute segment
// ("@id") must be the last segment.
func parseXMLSegments(path string) ([]xmlSegment, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty xml path %q", path)
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]xmlSegment, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty segment in xml path %q", path)
		}

		if strings.HasPrefix(part, "@") {
			if i != len(parts)-1 {
				return nil, fmt.Errorf("attribute segment %q must be last in xml path %q", part, path)
			}
			name := strings.TrimPrefix(part, "@")
			if name == "" {
				return nil, fmt.Errorf("missing attribute name in xml path %q", path)
			}
			segments = append(segments, xmlSegment{Name: name, Attr: true})
			continue
		}

		seg := xmlSegment{}
		if open := strings.Index(part, "["); open != -1 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("unterminated index in segment %q of xml path %q", part, path)
			}
			index, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || index < 0 {
				return nil, fmt.Errorf("invalid index in segment %q of xml path %q", part, path)
			}
			seg.Index = index
			part = part[:open]
		}
		if colon := strings.Index(part, ":"); colon != -1 {
			seg.Prefix = part[:colon]
			part = part[colon+1:]
		}
		if part == "" {
			return nil, fmt.Errorf("missing element name in xml path %q", path)
		}
		seg.Name = part
		segments = append(segments, seg)
	}
	return segments, nil
}

// matchXMLElement reports whether an element satisfies a segment by local name
// and, when the segment declares one, namespace prefix. Index is checked by
// the walking helpers, not here.
func matchXMLElement(el *etree.Element, seg xmlSegment) bool {
	if el.Tag != seg.Name {
		return false
	}
	return seg.Prefix == "" || el.Space == seg.Prefix
}

// findXMLChild returns the child of parent selected by the segment, counting
// same-named siblings to honor the segment index, or nil when absent.
func findXMLChild(parent *etree.Element, seg xmlSegment) *etree.Element {
	match := 0
	for _, child := range parent.ChildElements() {
		if !matchXMLElement(child, seg) {
			continue
		}
		if match == seg.Index {
			return child
		}
		match++
	}
	return nil
}

// findOrCreateXMLChild walks to the segment's child, creating the element and
// any missing same-named siblings before the requested index so "item[2]"
// lands at position 2 even when positions 0 and 1 do not exist yet.
func findOrCreateXMLChild(parent *etree.Element, seg xmlSegment) *etree.Element {
	if el := findXMLChild(parent, seg); el != nil {
		return el
	}
	el := parent.CreateElement(seg.Tag())
	for findXMLChild(parent, seg) == nil {
		el = parent.CreateElement(seg.Tag())
	}
	return el
}

// jsonPath strips the "$." prefix and rewrites bracketed element selection
// ("items[2].sku") into the dotted form gjson and sjson understand
// ("items.2.sku").
func jsonPath(path string) string {
	p := strings.TrimPrefix(strings.TrimSpace(path), model.PrefixJSON)
	if strings.Contains(p, "[") {
		p = strings.NewReplacer("[", ".", "]", "").Replace(p)
	}
	return p
}
