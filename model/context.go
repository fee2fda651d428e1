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
package model

// Context carries the state of one mapping invocation: the ordered field
// mappings, the typed source and destination trees, the two static dictionaries
// and a free-form property bag behaviors use to pass values to each other (an
// acquired auth token, timings). MappingName, Endpoint and Auth identify the
// integration the call belongs to, so stateless behaviors shared across calls
// can act per integration. A Context belongs to exactly one in-flight call and
// is never shared or pooled.
type Context[S, D any] struct {
	RequestID     string
	MappingName   string
	Endpoint      string
	Mappings      []FieldMapping
	Source        S
	Destination   D
	StaticValues  map[string]string
	GlobalStatics map[string]string
	Auth          *AuthConfig
	Properties    map[string]string
}

// NewContext builds a call context around a source and destination tree.
func NewContext[S, D any](mappings []FieldMapping, source S, destination D) *Context[S, D] {
	return &Context[S, D]{
		Mappings:    mappings,
		Source:      source,
		Destination: destination,
		Properties:  make(map[string]string),
	}
}

// MergedStatics flattens the global and integration static dictionaries into
// one map. Integration values win on key collision.
func (c *Context[S, D]) MergedStatics() map[string]string {
	merged := make(map[string]string, len(c.GlobalStatics)+len(c.StaticValues))
	for k, v := range c.GlobalStatics {
		merged[k] = v
	}
	for k, v := range c.StaticValues {
		merged[k] = v
	}
	return merged
}

// SetProperty records a cross-behavior property on the context.
func (c *Context[S, D]) SetProperty(key, value string) {
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	c.Properties[key] = value
}

// GetProperty reads a property previously set on the context.
func (c *Context[S, D]) GetProperty(key string) (string, bool) {
	v, ok := c.Properties[key]
	return v, ok
}

// Result is the outcome of one mapping run. FieldsProcessed counts mappings the
// engine looked at, FieldsWritten counts values that landed in the destination
// and FieldsSkipped counts fields that degraded to "not populated" (empty
// destination, unresolved path, writer refusal). Skips never fail the run.
type Result struct {
	IsSuccess       bool              `json:"is_success"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	Err             error             `json:"-"`
	FieldsProcessed int               `json:"fields_processed"`
	FieldsWritten   int               `json:"fields_written"`
	FieldsSkipped   int               `json:"fields_skipped"`
	Properties      map[string]string `json:"properties,omitempty"`
}

// Success builds a passing result carrying the field counters.
func Success(processed, written, skipped int) Result {
	return Result{
		IsSuccess:       true,
		FieldsProcessed: processed,
		FieldsWritten:   written,
		FieldsSkipped:   skipped,
		Properties:      make(map[string]string),
	}
}

// Failure builds a failing result around the original error.
func Failure(err error) Result {
	r := Result{
		IsSuccess:  false,
		Err:        err,
		Properties: make(map[string]string),
	}
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	return r
}

// SetProperty annotates the result. Behaviors use this to surface diagnostics
// such as elapsed time without touching the pass/fail outcome.
func (r *Result) SetProperty(key, value string) {
	if r.Properties == nil {
		r.Properties = make(map[string]string)
	}
	r.Properties[key] = value
}
