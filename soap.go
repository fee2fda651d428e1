package mapper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

const (
	soapEnvelopePrefix = "soapenv"
	soapEnvelopeNS     = "http://schemas.xmlsoap.org/soap/envelope/"
)

// EnvelopeBuilder wraps a mapped XML document in a SOAP 1.1 envelope.
type EnvelopeBuilder struct{}

func NewEnvelopeBuilder() *EnvelopeBuilder {
	return &EnvelopeBuilder{}
}

// Build returns a new document with the mapped payload wrapped in a SOAP
// envelope. Without a SoapConfig the payload root lands directly under the
// body; a config can add header and body scaffolding around it and name the
// exact wrapper element the payload splices into.
func (b *EnvelopeBuilder) Build(doc *etree.Document, soap *model.SoapConfig, statics map[string]string, namespaces map[string]string) (*etree.Document, error) {
	payload := doc.Root()
	if payload == nil {
		return nil, fmt.Errorf("cannot build SOAP envelope: mapped document has no root element")
	}

	envelope := etree.NewDocument()
	envelope.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := envelope.CreateElement(soapEnvelopePrefix + ":Envelope")
	root.CreateAttr("xmlns:"+soapEnvelopePrefix, soapEnvelopeNS)

	// Sorted so the serialized envelope is stable across runs.
	prefixes := make([]string, 0, len(namespaces))
	for prefix := range namespaces {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		root.CreateAttr("xmlns:"+prefix, namespaces[prefix])
	}

	if soap != nil && len(soap.Header) > 0 {
		header := root.CreateElement(soapEnvelopePrefix + ":Header")
		if err := b.buildFields(header, soap.Header, statics); err != nil {
			return nil, err
		}
	}

	body := root.CreateElement(soapEnvelopePrefix + ":Body")
	if soap == nil {
		body.AddChild(payload.Copy())
		return envelope, nil
	}

	if err := b.buildFields(body, soap.Body, statics); err != nil {
		return nil, err
	}

	if soap.BodyWrapperFieldXPath == "" {
		body.AddChild(payload.Copy())
		return envelope, nil
	}

	wrapper, err := b.locate(body, soap.BodyWrapperFieldXPath)
	if err != nil {
		return nil, err
	}
	wrapper.AddChild(b.renamespace(payload, wrapper.Space))
	return envelope, nil
}

// buildFields grows the element tree for each configured SOAP field and sets
// its value. Static references that resolve to nothing still leave the
// element in place, so fixed envelope shapes survive missing statics.
func (b *EnvelopeBuilder) buildFields(parent *etree.Element, fields []model.SoapFieldConfig, statics map[string]string) error {
	for _, field := range fields {
		segments, err := parseXMLSegments(field.XPath)
		if err != nil {
			return fmt.Errorf("invalid SOAP field path %q: %w", field.XPath, err)
		}

		current := parent
		for _, seg := range segments {
			if seg.Attr {
				return fmt.Errorf("invalid SOAP field path %q: attribute segments are not supported", field.XPath)
			}
			current = findOrCreateXMLChild(current, seg)
		}

		if field.Prefix != "" && field.Namespace != "" {
			current.CreateAttr("xmlns:"+field.Prefix, field.Namespace)
		}
		names := make([]string, 0, len(field.Attributes))
		for name := range field.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			current.CreateAttr(name, field.Attributes[name])
		}

		if value, ok := b.fieldValue(field.Source, statics); ok {
			current.SetText(value)
		}
	}
	return nil
}

func (b *EnvelopeBuilder) fieldValue(source string, statics map[string]string) (string, bool) {
	if source == "" {
		return "", false
	}
	if strings.HasPrefix(source, model.PrefixStatic) {
		value, ok := statics[strings.TrimPrefix(source, model.PrefixStatic)]
		return value, ok
	}
	return source, true
}

func (b *EnvelopeBuilder) locate(body *etree.Element, path string) (*etree.Element, error) {
	segments, err := parseXMLSegments(path)
	if err != nil {
		return nil, fmt.Errorf("invalid body wrapper path %q: %w", path, err)
	}

	current := body
	for _, seg := range segments {
		if seg.Attr {
			return nil, fmt.Errorf("invalid body wrapper path %q: attribute segments are not supported", path)
		}
		next := findXMLChild(current, seg)
		if next == nil {
			return nil, fmt.Errorf("body wrapper element %q not found in SOAP body", path)
		}
		current = next
	}
	return current, nil
}

// renamespace deep-copies the payload root and moves it into the wrapper's
// namespace prefix. Child elements keep their own prefixes.
func (b *EnvelopeBuilder) renamespace(payload *etree.Element, prefix string) *etree.Element {
	spliced := payload.Copy()
	if prefix != "" {
		spliced.Space = prefix
	}
	return spliced
}
