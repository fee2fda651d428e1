package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

func TestValidateCreateMapping(t *testing.T) {
	valid := CreateMapping{
		Name:            "orders-to-billing",
		Endpoint:        "orders",
		SourceType:      "json",
		DestinationType: "json",
		FieldMappings:   []model.FieldMapping{{Source: "$.order.id", Destination: "$.id"}},
	}

	tests := []struct {
		name    string
		mutate  func(m *CreateMapping)
		wantErr bool
	}{
		{
			name:    "Valid mapping",
			mutate:  func(m *CreateMapping) {},
			wantErr: false,
		},
		{
			name:    "Missing name",
			mutate:  func(m *CreateMapping) { m.Name = "" },
			wantErr: true,
		},
		{
			name:    "Missing endpoint",
			mutate:  func(m *CreateMapping) { m.Endpoint = "" },
			wantErr: true,
		},
		{
			name:    "Unknown source type",
			mutate:  func(m *CreateMapping) { m.SourceType = "yaml" },
			wantErr: true,
		},
		{
			name:    "Missing field mappings",
			mutate:  func(m *CreateMapping) { m.FieldMappings = nil },
			wantErr: true,
		},
		{
			name: "Field mapping without source",
			mutate: func(m *CreateMapping) {
				m.FieldMappings = []model.FieldMapping{{Destination: "$.id"}}
			},
			wantErr: true,
		},
		{
			name: "Soap config on json destination",
			mutate: func(m *CreateMapping) {
				m.SoapConfig = &model.SoapConfig{}
			},
			wantErr: true,
		},
		{
			name: "Soap config on xml destination",
			mutate: func(m *CreateMapping) {
				m.DestinationType = "xml"
				m.SoapConfig = &model.SoapConfig{}
			},
			wantErr: false,
		},
		{
			name: "Uppercase payload type is accepted",
			mutate: func(m *CreateMapping) {
				m.SourceType = "JSON"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			err := m.ValidateCreateMapping()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSetGlobalStatic(t *testing.T) {
	tests := []struct {
		name    string
		req     SetGlobalStatic
		wantErr bool
	}{
		{name: "Valid", req: SetGlobalStatic{Key: "company", Value: "Acme"}, wantErr: false},
		{name: "Missing key", req: SetGlobalStatic{Value: "Acme"}, wantErr: true},
		{name: "Missing value", req: SetGlobalStatic{Key: "company"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.ValidateSetGlobalStatic()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSetNamespace(t *testing.T) {
	tests := []struct {
		name    string
		req     SetNamespace
		wantErr bool
	}{
		{name: "Valid", req: SetNamespace{Prefix: "ord", URI: "http://example.com/orders"}, wantErr: false},
		{name: "Missing prefix", req: SetNamespace{URI: "http://example.com/orders"}, wantErr: true},
		{name: "Missing uri", req: SetNamespace{Prefix: "ord"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.ValidateSetNamespace()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToIntegrationMapping(t *testing.T) {
	req := CreateMapping{
		Name:            "orders-to-billing",
		Endpoint:        "orders",
		SourceType:      "JSON",
		DestinationType: "xml",
		DestinationURL:  "https://billing.example.com/ingest",
		StaticValues:    map[string]string{"channel": "api"},
		FieldMappings:   []model.FieldMapping{{Source: "$.order.id", Destination: "/Order/Id"}},
		SoapConfig:      &model.SoapConfig{BodyWrapperFieldXPath: "ProcessOrder"},
		Auth:            &model.AuthConfig{TokenURL: "https://auth.example.com/token", ClientID: "id", ClientSecret: "secret"},
		MetaData:        map[string]interface{}{"team": "integrations"},
	}

	mapping := req.ToIntegrationMapping()

	assert.Equal(t, "orders-to-billing", mapping.Name)
	assert.Equal(t, "orders", mapping.Endpoint)
	assert.Equal(t, model.PayloadJSON, mapping.SourceType)
	assert.Equal(t, model.PayloadXML, mapping.DestinationType)
	assert.Equal(t, "https://billing.example.com/ingest", mapping.DestinationURL)
	assert.Equal(t, map[string]string{"channel": "api"}, mapping.StaticValues)
	assert.Len(t, mapping.FieldMappings, 1)
	assert.Equal(t, "ProcessOrder", mapping.SoapConfig.BodyWrapperFieldXPath)
	assert.Equal(t, "https://auth.example.com/token", mapping.Auth.TokenURL)
	assert.NoError(t, mapping.ValidateIntegrationMapping())
}
