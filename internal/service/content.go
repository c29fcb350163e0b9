package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jemaat/portal/internal/domain/model"
	apperrors "github.com/jemaat/portal/internal/errors"
	"github.com/jemaat/portal/internal/observability/metrics"
	"github.com/jemaat/portal/internal/observability/statsd"
	"github.com/jemaat/portal/internal/ports"
)

const defaultExportPath = "/export"

// ContentServiceOptions groups dependencies for ContentService.
type ContentServiceOptions struct {
	Backend ports.Backend
	// Cache holds anonymous public listings; nil disables caching.
	Cache    ports.ContentCache
	CacheTTL time.Duration
	// ExportPath is prefixed to a resource's backend path for exports.
	ExportPath string
	Metrics    statsd.Sink
	Logger     *slog.Logger
}

// ContentService forwards content CRUD to the church API. Records stay opaque
// JSON apart from HTML sanitizing of rich-text fields.
type ContentService struct {
	backend    ports.Backend
	cache      ports.ContentCache
	cacheTTL   time.Duration
	exportPath string
	policy     *bluemonday.Policy
	metrics    statsd.Sink
	logger     *slog.Logger
}

// NewContentService constructs a new ContentService.
func NewContentService(opts ContentServiceOptions) *ContentService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exportPath := opts.ExportPath
	if exportPath == "" {
		exportPath = defaultExportPath
	}
	cache := opts.Cache
	if opts.CacheTTL <= 0 {
		cache = nil
	}
	return &ContentService{
		backend:    opts.Backend,
		cache:      cache,
		cacheTTL:   opts.CacheTTL,
		exportPath: "/" + strings.Trim(exportPath, "/"),
		policy:     newRichTextPolicy(),
		metrics:    opts.Metrics,
		logger:     logger.With("component", "content"),
	}
}

func newRichTextPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "blockquote", "strong", "em", "b", "i", "u", "h2", "h3", "h4")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowAttrs("src", "alt").OnElements("img")
	return p
}

// ExportFile is an opaque export produced by the church API.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// List returns a page of res. Anonymous listings of public resources are served
// from the cache when possible. token is empty for anonymous visitors.
func (s *ContentService) List(ctx context.Context, token string, res model.ContentResource, query url.Values) (model.ContentPage, error) {
	if token == "" && !res.Public {
		return model.ContentPage{}, apperrors.NotFoundf("%s not found", res.Name)
	}

	cacheable := token == "" && s.cache != nil
	cacheKey := cacheKeyFor(query)
	if cacheable {
		if page, ok := s.cachedPage(ctx, res, cacheKey); ok {
			metrics.EmitCache(s.metrics, res.Name, true)
			return page, nil
		}
		metrics.EmitCache(s.metrics, res.Name, false)
	}

	resp, err := s.backend.Do(ctx, token, ports.BackendRequest{Method: http.MethodGet, Path: res.BackendPath, Query: query})
	if err != nil {
		return model.ContentPage{}, err
	}
	if err := statusError(resp, res.Name); err != nil {
		return model.ContentPage{}, err
	}

	items, total, err := decodeList(resp.Body)
	if err != nil {
		return model.ContentPage{}, apperrors.Wrapf(err, apperrors.ErrCodeUnavailable, "unexpected %s response from church API", res.Name)
	}
	for _, it := range items {
		s.sanitize(it)
	}
	page := model.ContentPage{Resource: res, Items: items, Total: total}

	if cacheable {
		s.storePage(ctx, res, cacheKey, page)
	}
	return page, nil
}

// Get returns one record of res.
func (s *ContentService) Get(ctx context.Context, token string, res model.ContentResource, id string) (model.ContentRecord, error) {
	path, err := itemPath(res, id)
	if err != nil {
		return nil, err
	}
	resp, err := s.backend.Do(ctx, token, ports.BackendRequest{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	if err := statusError(resp, res.Name); err != nil {
		return nil, err
	}
	rec, err := decodeRecord(resp.Body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeUnavailable, "unexpected %s response from church API", res.Name)
	}
	s.sanitize(rec)
	return rec, nil
}

// Create posts a new record and invalidates the resource's cached listings.
func (s *ContentService) Create(ctx context.Context, token string, res model.ContentResource, fields map[string]any) (model.ContentRecord, error) {
	return s.write(ctx, token, res, http.MethodPost, res.BackendPath, fields)
}

// Update replaces the fields of record id.
func (s *ContentService) Update(ctx context.Context, token string, res model.ContentResource, id string, fields map[string]any) (model.ContentRecord, error) {
	path, err := itemPath(res, id)
	if err != nil {
		return nil, err
	}
	return s.write(ctx, token, res, http.MethodPut, path, fields)
}

// Delete removes record id.
func (s *ContentService) Delete(ctx context.Context, token string, res model.ContentResource, id string) error {
	path, err := itemPath(res, id)
	if err != nil {
		return err
	}
	resp, err := s.backend.Do(ctx, token, ports.BackendRequest{Method: http.MethodDelete, Path: path})
	if err != nil {
		return err
	}
	if err := statusError(resp, res.Name); err != nil {
		return err
	}
	s.invalidate(ctx, res)
	return nil
}

func (s *ContentService) write(
	ctx context.Context,
	token string,
	res model.ContentResource,
	method, path string,
	fields map[string]any,
) (model.ContentRecord, error) {
	if len(fields) == 0 {
		return nil, apperrors.Validation("no fields to save")
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "fields are not valid JSON")
	}

	resp, err := s.backend.Do(ctx, token, ports.BackendRequest{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	if err := statusError(resp, res.Name); err != nil {
		return nil, err
	}
	s.invalidate(ctx, res)

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return model.ContentRecord{}, nil
	}
	rec, err := decodeRecord(resp.Body)
	if err != nil {
		// The write succeeded; an unreadable echo is not worth failing it.
		s.logger.WarnContext(ctx, "undecodable write response", "resource", res.Name, "error", err)
		return model.ContentRecord{}, nil
	}
	s.sanitize(rec)
	return rec, nil
}

// Export asks the church API for an export of res filtered by query. The file is passed through untouched.
func (s *ContentService) Export(ctx context.Context, token string, res model.ContentResource, query url.Values) (ExportFile, error) {
	resp, err := s.backend.Do(ctx, token, ports.BackendRequest{
		Method: http.MethodGet,
		Path:   s.exportPath + res.BackendPath,
		Query:  query,
	})
	if err != nil {
		return ExportFile{}, err
	}
	if err := statusError(resp, res.Name); err != nil {
		return ExportFile{}, err
	}
	ct := resp.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return ExportFile{
		Filename:    res.Name + "-" + time.Now().UTC().Format("20060102") + exportExtension(ct),
		ContentType: ct,
		Body:        resp.Body,
	}, nil
}

func (s *ContentService) sanitize(rec model.ContentRecord) {
	for _, field := range model.RichTextFields() {
		raw, ok := rec[field]
		if !ok {
			continue
		}
		var html string
		if err := json.Unmarshal(raw, &html); err != nil {
			continue
		}
		clean, err := json.Marshal(s.policy.Sanitize(html))
		if err != nil {
			continue
		}
		rec[field] = clean
	}
}

func (s *ContentService) cachedPage(ctx context.Context, res model.ContentResource, key string) (model.ContentPage, bool) {
	b, ok, err := s.cache.Get(ctx, res.Name, key)
	if err != nil {
		s.logger.WarnContext(ctx, "content cache read failed", "resource", res.Name, "error", err)
		return model.ContentPage{}, false
	}
	if !ok {
		return model.ContentPage{}, false
	}
	var cached struct {
		Items []model.ContentRecord `json:"items"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(b, &cached); err != nil {
		return model.ContentPage{}, false
	}
	return model.ContentPage{Resource: res, Items: cached.Items, Total: cached.Total}, true
}

func (s *ContentService) storePage(ctx context.Context, res model.ContentResource, key string, page model.ContentPage) {
	b, err := json.Marshal(map[string]any{"items": page.Items, "total": page.Total})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, res.Name, key, b, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "content cache write failed", "resource", res.Name, "error", err)
	}
}

func (s *ContentService) invalidate(ctx context.Context, res model.ContentResource) {
	if s.cache == nil || !res.Public {
		return
	}
	if err := s.cache.Invalidate(ctx, res.Name); err != nil {
		s.logger.WarnContext(ctx, "content cache invalidate failed", "resource", res.Name, "error", err)
	}
}

func cacheKeyFor(query url.Values) string {
	if len(query) == 0 {
		return "all"
	}
	return query.Encode()
}

func itemPath(res model.ContentResource, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", apperrors.NotFoundf("%s not found", res.Name)
	}
	return res.BackendPath + "/" + url.PathEscape(id), nil
}

// statusError maps a non-2xx church API reply onto an application error.
func statusError(resp ports.BackendResponse, resource string) error {
	if resp.Status >= 200 && resp.Status <= 299 {
		return nil
	}
	msg := backendMessage(resp.Body)
	switch resp.Status {
	case http.StatusNotFound, http.StatusForbidden:
		return apperrors.NotFoundf("%s not found", resource)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "the church API rejected the data"
		}
		return apperrors.Validation(msg)
	case http.StatusConflict:
		if msg == "" {
			msg = "conflicting change"
		}
		return apperrors.Conflict(msg)
	default:
		return apperrors.Wrapf(fmt.Errorf("status %d", resp.Status), apperrors.ErrCodeUnavailable, "church API error for %s", resource)
	}
}

func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

var errNotAList = errors.New("response is not a list")

// decodeList accepts a bare array, {"data": [...]}, {"items": [...]} or a
// paginated {"data": {"data": [...], "total": n}} envelope.
func decodeList(body []byte) ([]model.ContentRecord, int, error) {
	var items []model.ContentRecord
	if err := json.Unmarshal(body, &items); err == nil {
		return items, len(items), nil
	}

	var env struct {
		Data  json.RawMessage `json:"data"`
		Items json.RawMessage `json:"items"`
		Total *int            `json:"total"`
		Meta  struct {
			Total *int `json:"total"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, err
	}

	raw := env.Data
	if len(raw) == 0 {
		raw = env.Items
	}
	if len(raw) == 0 {
		return nil, 0, errNotAList
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		// Laravel style pagination nests the list one level deeper.
		nested, total, nestedErr := decodeList(raw)
		if nestedErr != nil {
			return nil, 0, errNotAList
		}
		return nested, total, nil
	}

	total := len(items)
	switch {
	case env.Total != nil:
		total = *env.Total
	case env.Meta.Total != nil:
		total = *env.Meta.Total
	}
	return items, total, nil
}

func decodeRecord(body []byte) (model.ContentRecord, error) {
	var rec model.ContentRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("response is not an object")
	}
	if inner, ok := rec["data"]; ok {
		var nested model.ContentRecord
		if err := json.Unmarshal(inner, &nested); err == nil && nested != nil {
			return nested, nil
		}
	}
	return rec, nil
}

func exportExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "spreadsheetml"):
		return ".xlsx"
	case strings.Contains(contentType, "csv"):
		return ".csv"
	case strings.Contains(contentType, "pdf"):
		return ".pdf"
	case strings.Contains(contentType, "wordprocessingml"):
		return ".docx"
	default:
		return ""
	}
}
