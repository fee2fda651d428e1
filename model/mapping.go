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

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PayloadType identifies the tree shape of a payload on either side of a mapping.
type PayloadType string

const (
	PayloadJSON PayloadType = "json"
	PayloadXML  PayloadType = "xml"
)

// Path prefixes recognised by resolvers and writers. A leading "$." addresses a
// JSON tree, a leading "/" addresses an XML tree, and "$$." references a static
// value by key instead of reading the payload at all.
const (
	PrefixJSON   = "$."
	PrefixXML    = "/"
	PrefixStatic = "$$."
)

// ParsePayloadType normalizes a payload type string from configuration.
func ParsePayloadType(s string) (PayloadType, error) {
	switch PayloadType(strings.ToLower(strings.TrimSpace(s))) {
	case PayloadJSON:
		return PayloadJSON, nil
	case PayloadXML:
		return PayloadXML, nil
	default:
		return "", errors.New("unknown payload type: " + s)
	}
}

// TransformerConfig names one transformer in a field's chain together with its
// arguments. Arguments are free-form strings interpreted by the transformer.
type TransformerConfig struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// FieldMapping is a single source-path to destination-path rule. Destination may
// be empty, in which case the field is never resolved or written. FieldMappings
// are created from configuration and never mutated afterwards.
type FieldMapping struct {
	Source       string              `json:"source"`
	Destination  string              `json:"destination,omitempty"`
	Transformers []TransformerConfig `json:"transformers,omitempty"`
}

// SoapFieldConfig declares one element (or attribute set) of a SOAP header or
// body. XPath is a slash-separated location; Source is an optional "$$." static
// reference or literal used as the element text.
type SoapFieldConfig struct {
	XPath      string            `json:"x_path"`
	Source     string            `json:"source,omitempty"`
	Namespace  string            `json:"namespace,omitempty"`
	Prefix     string            `json:"prefix,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SoapConfig declares the envelope built around a mapped destination tree.
// BodyWrapperFieldXPath names the body element the mapped tree is spliced into;
// when empty the mapped tree becomes the body's only child.
type SoapConfig struct {
	Header                []SoapFieldConfig `json:"header,omitempty"`
	Body                  []SoapFieldConfig `json:"body,omitempty"`
	BodyWrapperFieldXPath string            `json:"body_wrapper_field_x_path,omitempty"`
}

// AuthConfig describes how a bearer token for the destination system is
// acquired. Tokens are fetched by the auth behavior and cached across calls.
type AuthConfig struct {
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope,omitempty"`
	HeaderName   string `json:"header_name,omitempty"`
}

// IntegrationMapping is the full declarative configuration for one integration:
// which endpoint it serves, the payload types on both sides, the ordered field
// mappings, integration-scoped static values and the optional SOAP envelope.
// Records are owned by the mapping store and read-only to the engine.
type IntegrationMapping struct {
	MappingID       string                 `json:"mapping_id"`
	Name            string                 `json:"name"`
	Endpoint        string                 `json:"endpoint"`
	SourceType      PayloadType            `json:"source_type"`
	DestinationType PayloadType            `json:"destination_type"`
	DestinationURL  string                 `json:"destination_url,omitempty"`
	StaticValues    map[string]string      `json:"static_values,omitempty"`
	FieldMappings   []FieldMapping         `json:"field_mappings"`
	SoapConfig      *SoapConfig            `json:"soap_config,omitempty"`
	Auth            *AuthConfig            `json:"auth,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
}

func payloadTypeRule(value interface{}) error {
	t, ok := value.(PayloadType)
	if !ok {
		return errors.New("invalid payload type")
	}
	if t != PayloadJSON && t != PayloadXML {
		return errors.New("payload type must be json or xml")
	}
	return nil
}

// ValidateFieldMapping enforces the one hard invariant on a field mapping:
// the source path is never empty.
func (f FieldMapping) ValidateFieldMapping() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Source, validation.Required),
	)
}

// ValidateIntegrationMapping checks a record loaded from the store before it is
// handed to the engine. Field mappings are validated individually so a broken
// record is rejected at load time rather than at call time.
func (m *IntegrationMapping) ValidateIntegrationMapping() error {
	err := validation.ValidateStruct(m,
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.Endpoint, validation.Required),
		validation.Field(&m.SourceType, validation.Required, validation.By(payloadTypeRule)),
		validation.Field(&m.DestinationType, validation.Required, validation.By(payloadTypeRule)),
		validation.Field(&m.FieldMappings, validation.Required),
	)
	if err != nil {
		return err
	}
	for i, fm := range m.FieldMappings {
		if err := fm.ValidateFieldMapping(); err != nil {
			return fmt.Errorf("field mapping %d: %w", i, err)
		}
	}
	if m.SoapConfig != nil && m.DestinationType != PayloadXML {
		return errors.New("soap config requires an xml destination")
	}
	return nil
}
