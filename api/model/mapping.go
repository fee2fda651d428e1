package model

import "github.com/JerrettDavis/QuickApiMapper-sub001/model"

// CreateMapping is the request body for creating or replacing an integration
// mapping. Nested field, SOAP and auth shapes reuse the domain types directly;
// they are plain configuration data on both sides of the wire.
type CreateMapping struct {
	Name            string                 `json:"name"`
	Endpoint        string                 `json:"endpoint"`
	SourceType      string                 `json:"source_type"`
	DestinationType string                 `json:"destination_type"`
	DestinationURL  string                 `json:"destination_url,omitempty"`
	StaticValues    map[string]string      `json:"static_values,omitempty"`
	FieldMappings   []model.FieldMapping   `json:"field_mappings"`
	SoapConfig      *model.SoapConfig      `json:"soap_config,omitempty"`
	Auth            *model.AuthConfig      `json:"auth,omitempty"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
}

// SetGlobalStatic upserts one entry of the global static-value dictionary.
type SetGlobalStatic struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SetNamespace upserts one envelope namespace declaration.
type SetNamespace struct {
	Prefix string `json:"prefix"`
	URI    string `json:"uri"`
}
