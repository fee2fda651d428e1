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
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"github.com/typesense/typesense-go/typesense/api"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	"github.com/JerrettDavis/QuickApiMapper-sub001/database"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/archive"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/files"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/filter"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/hooks"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/notification"
	redis_db "github.com/JerrettDavis/QuickApiMapper-sub001/internal/redis-db"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/search"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
	"github.com/JerrettDavis/QuickApiMapper-sub001/transform"
)

// Content types stamped on rendered destination payloads.
const (
	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml"
	contentTypeSOAP = "text/xml; charset=utf-8"
)

// Mapper is the main service struct for the mapping application. It owns one
// pipeline per source/destination payload pairing; every inbound call picks
// the pipeline matching its integration and runs it.
type Mapper struct {
	queue      *Queue
	search     *search.TypesenseClient
	redis      redis.UniversalClient
	store      database.MappingStore
	datasource database.IDataSource
	registry   *transform.Registry
	captures   *CaptureService
	hooks      hooks.HookManager
	tokens     *TokenCache
	archive    *archive.Manager
	envelopes  *EnvelopeBuilder
	reindex    *search.ReindexService

	jsonToJSON *Pipeline[*model.JSONDocument, *model.JSONDocument]
	jsonToXML  *Pipeline[*model.JSONDocument, *etree.Document]
	xmlToJSON  *Pipeline[*etree.Document, *model.JSONDocument]
	xmlToXML   *Pipeline[*etree.Document, *etree.Document]
}

// NewMapper initializes a new instance of Mapper with the provided mapping
// store. It fetches the configuration and initializes the Redis client,
// transformer registry, queue, search client and capture service.
//
// Parameters:
// - store database.MappingStore: The source of integration mappings.
// - ds database.IDataSource: The full datasource, nil when mappings come from files.
//
// Returns:
// - *Mapper: A pointer to the newly created Mapper instance.
// - error: An error if any of the initialization steps fail.
func NewMapper(store database.MappingStore, ds database.IDataSource) (*Mapper, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	registry, err := transform.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	archiver, err := archive.NewManager(configuration)
	if err != nil {
		return nil, err
	}

	newQueue := NewQueue(configuration)
	newSearch := search.NewTypesenseClient(configuration.TypeSenseKey, []string{configuration.TypeSense.Dns})

	m := &Mapper{
		queue:      newQueue,
		search:     newSearch,
		redis:      redisClient.Client(),
		store:      store,
		datasource: ds,
		registry:   registry,
		captures:   NewCaptureService(configuration, ds, newQueue),
		hooks:      hooks.NewHookManager(redisClient.Client()),
		tokens:     NewTokenCache(configuration),
		archive:    archiver,
		envelopes:  NewEnvelopeBuilder(),
	}

	var captureSource search.CaptureSource
	if ds != nil {
		captureSource = ds
	}
	m.reindex = search.NewReindexService(newSearch, store, captureSource, search.ReindexConfig{})

	m.buildPipelines()

	notification.RegisterWebhookSender(func(event string, payload interface{}) error {
		return SendWebhook(NewWebhook{Event: event, Payload: payload})
	})
	return m, nil
}

// buildPipelines assembles the four typed pipelines. Static resolvers sit in
// front of the payload resolvers so "$$." references never touch the source
// tree.
func (m *Mapper) buildPipelines() {
	renderJSON := func(doc *model.JSONDocument) string {
		if doc == nil {
			return ""
		}
		return string(doc.Bytes())
	}
	renderXML := func(doc *etree.Document) string {
		if doc == nil {
			return ""
		}
		out, err := doc.WriteToString()
		if err != nil {
			return ""
		}
		return out
	}

	jsonResolvers := []Resolver[*model.JSONDocument]{StaticResolver[*model.JSONDocument]{}, JSONResolver{}}
	xmlResolvers := []Resolver[*etree.Document]{StaticResolver[*etree.Document]{}, XMLResolver{}}
	jsonWriters := []Writer[*model.JSONDocument]{JSONWriter{}}
	xmlWriters := []Writer[*etree.Document]{XMLWriter{}}

	m.jsonToJSON = buildPipeline(m, model.PayloadJSON, jsonResolvers, jsonWriters, renderJSON, renderJSON)
	m.jsonToXML = buildPipeline(m, model.PayloadJSON, jsonResolvers, xmlWriters, renderJSON, renderXML)
	m.xmlToJSON = buildPipeline(m, model.PayloadXML, xmlResolvers, jsonWriters, renderXML, renderJSON)
	m.xmlToXML = buildPipeline(m, model.PayloadXML, xmlResolvers, xmlWriters, renderXML, renderXML)
}

func buildPipeline[S, D any](m *Mapper, sourceType model.PayloadType, resolvers []Resolver[S], writers []Writer[D], renderSource func(S) string, renderDest func(D) string) *Pipeline[S, D] {
	engine := NewEngine(m.registry, resolvers, writers)
	pre := []PreRunBehavior[S, D]{
		ValidationBehavior[S, D]{},
		NewAuthTokenBehavior[S, D](m.tokens),
		NewPreHookBehavior[S, D](m.hooks, renderSource),
	}
	whole := []WholeRunBehavior[S, D]{
		TracingBehavior[S, D]{},
		TimingBehavior[S, D]{},
	}
	post := []PostRunBehavior[S, D]{
		NewCaptureBehavior[S, D](m.captures, sourceType, renderSource, renderDest),
		NewPostHookBehavior[S, D](m.hooks),
	}
	return NewPipeline(engine, pre, whole, post)
}

// InboundReceipt reports what happened to one inbound payload.
type InboundReceipt struct {
	RequestID   string        `json:"request_id"`
	MappingID   string        `json:"mapping_id"`
	Name        string        `json:"name"`
	Endpoint    string        `json:"endpoint"`
	Queued      bool          `json:"queued"`
	DeliveryID  string        `json:"delivery_id,omitempty"`
	Result      *model.Result `json:"result"`
	Output      []byte        `json:"-"`
	ContentType string        `json:"-"`
}

// ProcessInbound maps one inbound payload through the integration serving the
// endpoint. On success the rendered destination payload is returned in the
// receipt and, when the integration names a destination URL, queued for
// delivery.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - endpoint string: The inbound endpoint name.
// - payload []byte: The raw request body.
//
// Returns:
// - *InboundReceipt: The outcome, including the mapping result and rendered output.
// - error: An error if the call could not run at all.
func (m *Mapper) ProcessInbound(ctx context.Context, endpoint string, payload []byte) (*InboundReceipt, error) {
	ctx, span := tracer.Start(ctx, "Processing inbound payload")
	defer span.End()

	mapping, err := m.store.GetMappingByEndpoint(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("no integration mapping serves endpoint %q", endpoint), nil)
	}

	globals, err := m.store.GetGlobalStatics(ctx)
	if err != nil {
		return nil, err
	}

	requestID := model.GenerateUUIDWithSuffix("req")

	var (
		result      *model.Result
		properties  map[string]string
		output      []byte
		contentType string
	)

	switch {
	case mapping.SourceType == model.PayloadJSON && mapping.DestinationType == model.PayloadJSON:
		source, err := parseJSONPayload(payload)
		if err != nil {
			return nil, err
		}
		dest := model.NewJSONDocument(nil)
		mctx := newRunContext(mapping, requestID, globals, source, dest)
		if result, err = m.jsonToJSON.Execute(ctx, mctx); err != nil {
			return nil, err
		}
		properties = mctx.Properties
		if result.IsSuccess {
			output, contentType = dest.Bytes(), contentTypeJSON
		}

	case mapping.SourceType == model.PayloadJSON && mapping.DestinationType == model.PayloadXML:
		source, err := parseJSONPayload(payload)
		if err != nil {
			return nil, err
		}
		dest := etree.NewDocument()
		mctx := newRunContext(mapping, requestID, globals, source, dest)
		if result, err = m.jsonToXML.Execute(ctx, mctx); err != nil {
			return nil, err
		}
		properties = mctx.Properties
		if result.IsSuccess {
			if output, contentType, err = m.renderXMLDestination(ctx, mapping, mctx.MergedStatics(), dest); err != nil {
				return nil, err
			}
		}

	case mapping.SourceType == model.PayloadXML && mapping.DestinationType == model.PayloadJSON:
		source, err := parseXMLPayload(payload)
		if err != nil {
			return nil, err
		}
		dest := model.NewJSONDocument(nil)
		mctx := newRunContext(mapping, requestID, globals, source, dest)
		if result, err = m.xmlToJSON.Execute(ctx, mctx); err != nil {
			return nil, err
		}
		properties = mctx.Properties
		if result.IsSuccess {
			output, contentType = dest.Bytes(), contentTypeJSON
		}

	case mapping.SourceType == model.PayloadXML && mapping.DestinationType == model.PayloadXML:
		source, err := parseXMLPayload(payload)
		if err != nil {
			return nil, err
		}
		dest := etree.NewDocument()
		mctx := newRunContext(mapping, requestID, globals, source, dest)
		if result, err = m.xmlToXML.Execute(ctx, mctx); err != nil {
			return nil, err
		}
		properties = mctx.Properties
		if result.IsSuccess {
			if output, contentType, err = m.renderXMLDestination(ctx, mapping, mctx.MergedStatics(), dest); err != nil {
				return nil, err
			}
		}

	default:
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("mapping %s has unsupported payload types %s -> %s", mapping.Name, mapping.SourceType, mapping.DestinationType), nil)
	}

	receipt := &InboundReceipt{
		RequestID: requestID,
		MappingID: mapping.MappingID,
		Name:      mapping.Name,
		Endpoint:  mapping.Endpoint,
		Result:    result,
	}
	if !result.IsSuccess {
		return receipt, nil
	}

	receipt.Output = output
	receipt.ContentType = contentType

	if mapping.DestinationURL != "" {
		headers := map[string]string{}
		if auth, ok := properties[PropAuthorization]; ok {
			header := "Authorization"
			if mapping.Auth != nil && mapping.Auth.HeaderName != "" {
				header = mapping.Auth.HeaderName
			}
			headers[header] = auth
		}
		delivery := &model.Delivery{
			DeliveryID:  model.GenerateUUIDWithSuffix("dlv"),
			MappingName: mapping.Name,
			Endpoint:    mapping.Endpoint,
			URL:         mapping.DestinationURL,
			ContentType: contentType,
			Headers:     headers,
			Body:        output,
			Status:      model.StatusQueued,
			CreatedAt:   time.Now(),
		}
		if err := m.queue.Enqueue(ctx, delivery); err != nil {
			return nil, err
		}
		receipt.Queued = true
		receipt.DeliveryID = delivery.DeliveryID
	}

	return receipt, nil
}

func parseJSONPayload(payload []byte) (*model.JSONDocument, error) {
	if !gjson.ValidBytes(payload) {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "request body is not valid JSON", nil)
	}
	return model.NewJSONDocument(payload), nil
}

func parseXMLPayload(payload []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "request body is not valid XML", err)
	}
	if doc.Root() == nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "request body has no XML root element", nil)
	}
	return doc, nil
}

func newRunContext[S, D any](mapping *model.IntegrationMapping, requestID string, globals map[string]string, source S, dest D) *model.Context[S, D] {
	mctx := model.NewContext(mapping.FieldMappings, source, dest)
	mctx.RequestID = requestID
	mctx.MappingName = mapping.Name
	mctx.Endpoint = mapping.Endpoint
	mctx.StaticValues = mapping.StaticValues
	mctx.GlobalStatics = globals
	mctx.Auth = mapping.Auth
	return mctx
}

// soapRequested reports whether the mapped XML payload should travel inside a
// SOAP envelope: either the integration configures one explicitly or its
// metadata marks the destination protocol as SOAP.
func soapRequested(mapping *model.IntegrationMapping) bool {
	if mapping.DestinationType != model.PayloadXML {
		return false
	}
	if mapping.SoapConfig != nil {
		return true
	}
	protocol, _ := mapping.MetaData["protocol"].(string)
	return strings.EqualFold(protocol, "soap")
}

// renderXMLDestination serializes an XML destination, wrapping it in a SOAP
// envelope when the integration asks for one.
func (m *Mapper) renderXMLDestination(ctx context.Context, mapping *model.IntegrationMapping, statics map[string]string, dest *etree.Document) ([]byte, string, error) {
	doc := dest
	contentType := contentTypeXML
	if soapRequested(mapping) {
		namespaces, err := m.store.GetNamespaces(ctx)
		if err != nil {
			return nil, "", err
		}
		if doc, err = m.envelopes.Build(dest, mapping.SoapConfig, statics, namespaces); err != nil {
			return nil, "", err
		}
		contentType = contentTypeSOAP
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, "", err
	}
	return out, contentType, nil
}

// Search performs a search on the specified collection using the provided
// query parameters.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - collection string: The name of the collection to search.
// - query *api.SearchCollectionParams: The search query parameters.
//
// Returns:
// - interface{}: The search results.
// - error: An error if the search operation fails.
func (m *Mapper) Search(ctx context.Context, collection string, query *api.SearchCollectionParams) (interface{}, error) {
	return m.search.Search(ctx, collection, query)
}

// MultiSearch runs several searches in one round trip.
func (m *Mapper) MultiSearch(ctx context.Context, searches api.MultiSearchSearchesParameter) (*api.MultiSearchResult, error) {
	return m.search.MultiSearch(ctx, searches)
}

// StartReindex rebuilds the search collections from the stores.
func (m *Mapper) StartReindex(ctx context.Context) (*search.ReindexProgress, error) {
	return m.reindex.StartReindex(ctx)
}

// ReindexProgress reports the state of the running or last reindex.
func (m *Mapper) ReindexProgress() search.ReindexProgress {
	return m.reindex.GetProgress()
}

// Hooks exposes the webhook hook manager to the API layer.
func (m *Mapper) Hooks() hooks.HookManager {
	return m.hooks
}

// Captures exposes the capture service to the API layer and workers.
func (m *Mapper) Captures() *CaptureService {
	return m.captures
}

// Registry exposes the transformer registry.
func (m *Mapper) Registry() *transform.Registry {
	return m.registry
}

// requireDatasource guards operations that only make sense with a
// database-backed mapping store.
func (m *Mapper) requireDatasource() error {
	if m.datasource == nil {
		return apierror.NewAPIError(apierror.ErrBadRequest, "operation needs a database-backed mapping source", nil)
	}
	return nil
}

// GetMappingByID retrieves one integration mapping by its ID.
func (m *Mapper) GetMappingByID(ctx context.Context, id string) (*model.IntegrationMapping, error) {
	return m.store.GetMappingByID(ctx, id)
}

// GetMappingByName retrieves one integration mapping by its unique name.
func (m *Mapper) GetMappingByName(ctx context.Context, name string) (*model.IntegrationMapping, error) {
	return m.store.GetMappingByName(ctx, name)
}

// GetAllMappings retrieves integration mappings in pages.
func (m *Mapper) GetAllMappings(ctx context.Context, limit, offset int) ([]model.IntegrationMapping, error) {
	return m.store.GetAllMappings(ctx, limit, offset)
}

// GetAllMappingsWithFilter retrieves mappings matching the filter set.
func (m *Mapper) GetAllMappingsWithFilter(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]model.IntegrationMapping, *int64, error) {
	if err := m.requireDatasource(); err != nil {
		return nil, nil, err
	}
	return m.datasource.GetAllMappingsWithFilterAndOptions(ctx, filters, opts, limit, offset)
}

// CreateMapping validates and stores a new integration mapping, then queues it
// for indexing.
func (m *Mapper) CreateMapping(ctx context.Context, mapping *model.IntegrationMapping) (*model.IntegrationMapping, error) {
	if err := m.requireDatasource(); err != nil {
		return nil, err
	}
	if err := mapping.ValidateIntegrationMapping(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	created, err := m.datasource.CreateMapping(ctx, mapping)
	if err != nil {
		return nil, err
	}
	if err := m.queue.queueIndexData(created.MappingID, "mappings", created); err != nil {
		notification.NotifyError(err)
	}
	go func() {
		if err := notification.SendWebhook("mapping.created", created); err != nil {
			notification.NotifyError(err)
		}
	}()
	return created, nil
}

// UpdateMapping replaces a stored integration mapping.
func (m *Mapper) UpdateMapping(ctx context.Context, mapping *model.IntegrationMapping) error {
	if err := m.requireDatasource(); err != nil {
		return err
	}
	if err := mapping.ValidateIntegrationMapping(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	if err := m.datasource.UpdateMapping(ctx, mapping); err != nil {
		return err
	}
	if err := m.queue.queueIndexData(mapping.MappingID, "mappings", mapping); err != nil {
		notification.NotifyError(err)
	}
	go func() {
		if err := notification.SendWebhook("mapping.updated", mapping); err != nil {
			notification.NotifyError(err)
		}
	}()
	return nil
}

// DeleteMapping removes a stored integration mapping.
func (m *Mapper) DeleteMapping(ctx context.Context, id string) error {
	if err := m.requireDatasource(); err != nil {
		return err
	}
	if err := m.datasource.DeleteMapping(ctx, id); err != nil {
		return err
	}
	go func() {
		if err := notification.SendWebhook("mapping.deleted", map[string]string{"mapping_id": id}); err != nil {
			notification.NotifyError(err)
		}
	}()
	return nil
}

// GetGlobalStatics returns the global static-value dictionary.
func (m *Mapper) GetGlobalStatics(ctx context.Context) (map[string]string, error) {
	return m.store.GetGlobalStatics(ctx)
}

// GetNamespaces returns the envelope namespace declarations.
func (m *Mapper) GetNamespaces(ctx context.Context) (map[string]string, error) {
	return m.store.GetNamespaces(ctx)
}

// SetGlobalStatic upserts one global static value.
func (m *Mapper) SetGlobalStatic(ctx context.Context, key, value string) error {
	if err := m.requireDatasource(); err != nil {
		return err
	}
	return m.datasource.SetGlobal(ctx, database.GlobalKindStatic, key, value)
}

// SetNamespace upserts one envelope namespace declaration.
func (m *Mapper) SetNamespace(ctx context.Context, prefix, uri string) error {
	if err := m.requireDatasource(); err != nil {
		return err
	}
	return m.datasource.SetGlobal(ctx, database.GlobalKindNamespace, prefix, uri)
}

// GetCaptureByID retrieves one capture by its ID.
func (m *Mapper) GetCaptureByID(ctx context.Context, id string) (*model.MessageCapture, error) {
	if err := m.requireDatasource(); err != nil {
		return nil, err
	}
	return m.datasource.GetCaptureByID(ctx, id)
}

// GetAllCaptures retrieves captures in pages.
func (m *Mapper) GetAllCaptures(ctx context.Context, limit, offset int) ([]model.MessageCapture, error) {
	if err := m.requireDatasource(); err != nil {
		return nil, err
	}
	return m.datasource.GetAllCaptures(ctx, limit, offset)
}

// GetCapturesByMapping retrieves captures recorded for one mapping.
func (m *Mapper) GetCapturesByMapping(ctx context.Context, mappingName string, limit, offset int) ([]model.MessageCapture, error) {
	if err := m.requireDatasource(); err != nil {
		return nil, err
	}
	return m.datasource.GetCapturesByMapping(ctx, mappingName, limit, offset)
}

// GetAllCapturesWithFilter retrieves captures matching the filter set.
func (m *Mapper) GetAllCapturesWithFilter(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]model.MessageCapture, *int64, error) {
	if err := m.requireDatasource(); err != nil {
		return nil, nil, err
	}
	return m.datasource.GetAllCapturesWithFilterAndOptions(ctx, filters, opts, limit, offset)
}

// ImportMappings loads integration mappings from an uploaded JSON or CSV file
// and stores each one. Returns the import ID and how many mappings landed.
func (m *Mapper) ImportMappings(ctx context.Context, reader io.Reader, filename string) (string, int, error) {
	if err := m.requireDatasource(); err != nil {
		return "", 0, err
	}
	return files.ImportMappings(ctx, reader, filename, func(ctx context.Context, importID string, mapping model.IntegrationMapping) error {
		created, err := m.datasource.CreateMapping(ctx, &mapping)
		if err != nil {
			return err
		}
		if err := m.queue.queueIndexData(created.MappingID, "mappings", created); err != nil {
			notification.NotifyError(err)
		}
		return nil
	})
}

// allMappings pages through the store and collects every mapping.
func (m *Mapper) allMappings(ctx context.Context) ([]model.IntegrationMapping, error) {
	const pageSize = 500
	var all []model.IntegrationMapping
	for offset := 0; ; offset += pageSize {
		page, err := m.store.GetAllMappings(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}
	return all, nil
}

// BackupMappings writes every mapping to the configured backup directory and
// returns the backup file path.
func (m *Mapper) BackupMappings(ctx context.Context) (string, error) {
	mappings, err := m.allMappings(ctx)
	if err != nil {
		return "", err
	}
	return m.archive.BackupMappingsToDisk(ctx, mappings)
}

// BackupMappingsToS3 writes every mapping to the configured S3 bucket.
func (m *Mapper) BackupMappingsToS3(ctx context.Context) error {
	mappings, err := m.allMappings(ctx)
	if err != nil {
		return err
	}
	return m.archive.BackupMappingsToS3(ctx, mappings)
}
