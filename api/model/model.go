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

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

func payloadTypeValidation(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return errors.New("invalid payload type")
	}
	if _, err := model.ParsePayloadType(s); err != nil {
		return err
	}
	return nil
}

func (m *CreateMapping) ValidateCreateMapping() error {
	err := validation.ValidateStruct(m,
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.Endpoint, validation.Required),
		validation.Field(&m.SourceType, validation.Required, validation.By(payloadTypeValidation)),
		validation.Field(&m.DestinationType, validation.Required, validation.By(payloadTypeValidation)),
		validation.Field(&m.FieldMappings, validation.Required),
	)
	if err != nil {
		return err
	}
	for _, fm := range m.FieldMappings {
		if err := fm.ValidateFieldMapping(); err != nil {
			return err
		}
	}
	if m.SoapConfig != nil && m.DestinationType != string(model.PayloadXML) {
		return errors.New("soap config requires an xml destination")
	}
	return nil
}

func (g *SetGlobalStatic) ValidateSetGlobalStatic() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.Key, validation.Required),
		validation.Field(&g.Value, validation.Required),
	)
}

func (n *SetNamespace) ValidateSetNamespace() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.Prefix, validation.Required),
		validation.Field(&n.URI, validation.Required),
	)
}

// ToIntegrationMapping converts the validated request into the domain record.
// Payload types were already checked, so parse errors are ignored here.
func (m *CreateMapping) ToIntegrationMapping() *model.IntegrationMapping {
	sourceType, _ := model.ParsePayloadType(m.SourceType)
	destinationType, _ := model.ParsePayloadType(m.DestinationType)
	return &model.IntegrationMapping{
		Name:            m.Name,
		Endpoint:        m.Endpoint,
		SourceType:      sourceType,
		DestinationType: destinationType,
		DestinationURL:  m.DestinationURL,
		StaticValues:    m.StaticValues,
		FieldMappings:   m.FieldMappings,
		SoapConfig:      m.SoapConfig,
		Auth:            m.Auth,
		MetaData:        m.MetaData,
	}
}
