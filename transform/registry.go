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
package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// Func is a pure string to string transformation. Args carry the per-use
// configuration declared on the field mapping.
type Func func(value string, args map[string]string) (string, error)

// Transformer pairs a registered name with its implementation.
type Transformer struct {
	Name        string
	Description string
	Apply       Func
}

// Registry holds the full set of named transformers. It is built once at
// startup and read-only afterwards, so lookups need no synchronization.
type Registry struct {
	transformers map[string]Transformer
}

// NewRegistry builds a registry from the given transformers. Names are
// case-insensitive and must be unique; a duplicate is a configuration error
// surfaced at construction, never at call time.
func NewRegistry(transformers ...Transformer) (*Registry, error) {
	r := &Registry{transformers: make(map[string]Transformer, len(transformers))}
	for _, t := range transformers {
		key := strings.ToLower(strings.TrimSpace(t.Name))
		if key == "" {
			return nil, fmt.Errorf("transformer with empty name")
		}
		if existing, ok := r.transformers[key]; ok {
			return nil, fmt.Errorf("duplicate transformer name %q (already registered as %q)", t.Name, existing.Name)
		}
		r.transformers[key] = t
	}
	return r, nil
}

// NewDefaultRegistry builds a registry loaded with the built-in transformers.
func NewDefaultRegistry() (*Registry, error) {
	return NewRegistry(Builtins()...)
}

// Get retrieves a transformer by name, case-insensitively.
func (r *Registry) Get(name string) (Transformer, bool) {
	t, ok := r.transformers[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Names returns the registered transformer names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.transformers))
	for _, t := range r.transformers {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Suggest returns the registered name closest to the given unknown name, or an
// empty string when nothing is remotely similar.
func (r *Registry) Suggest(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	best := ""
	bestDistance := -1
	for key, t := range r.transformers {
		distance := levenshtein.DistanceForStrings([]rune(lower), []rune(key), levenshtein.DefaultOptions)
		if bestDistance == -1 || distance < bestDistance {
			bestDistance = distance
			best = t.Name
		}
	}
	// More than half the name wrong is noise, not a typo.
	if bestDistance == -1 || bestDistance > len(lower)/2+1 {
		return ""
	}
	return best
}

// Apply runs a transformer chain left to right, each transformer taking the
// previous output as input. A chain entry that is unknown, returns an error or
// panics leaves the current value unchanged and the chain continues. Transformer
// problems are never fatal to a mapping call.
func (r *Registry) Apply(value string, chain []model.TransformerConfig) string {
	for _, tc := range chain {
		t, ok := r.Get(tc.Name)
		if !ok {
			fields := logrus.Fields{"transformer": tc.Name}
			if suggestion := r.Suggest(tc.Name); suggestion != "" {
				fields["did_you_mean"] = suggestion
			}
			logrus.WithFields(fields).Warn("unknown transformer, value passed through unchanged")
			continue
		}
		value = applyOne(t, value, tc.Args)
	}
	return value
}

func applyOne(t Transformer, value string, args map[string]string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithFields(logrus.Fields{"transformer": t.Name, "panic": rec}).
				Error("transformer panicked, value passed through unchanged")
			out = value
		}
	}()
	transformed, err := t.Apply(value, args)
	if err != nil {
		logrus.WithFields(logrus.Fields{"transformer": t.Name, "error": err}).
			Warn("transformer failed, value passed through unchanged")
		return value
	}
	return transformed
}
