// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apiclient talks to the annotation REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/evidence-annotator/internal/httputil"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "evidence-annotator/1.0"
	maxErrorBody     = 512
)

// ErrNotFound is returned when the API answers 404.
var ErrNotFound = errors.New("not found")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client is an annotation backend served over HTTP.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	retrier   httputil.Retrier
	log       zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
		c.retrier.Log = log
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.retrier.Client = hc }
}

// WithRetryDelay sets the base backoff for throttled responses.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retrier.BaseDelay = d }
}

// New returns a client for the API described by cfg.
func New(cfg types.APIConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("api url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		token:     cfg.Token,
		userAgent: ua,
		log:       zerolog.Nop(),
		retrier: httputil.Retrier{
			Client:     &http.Client{Timeout: timeout},
			MaxRetries: cfg.MaxRetries,
			Log:        zerolog.Nop(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do sends a request with an optional JSON body and decodes a JSON
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api call")

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// GetDocuments fetches one page of documents. Page numbering follows the
// server.
func (c *Client) GetDocuments(ctx context.Context, page, limit int) (types.DocumentPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out types.DocumentPage
	if err := c.do(ctx, http.MethodGet, "/documents?"+q.Encode(), nil, &out); err != nil {
		return types.DocumentPage{}, err
	}
	if out.Documents == nil {
		out.Documents = []types.Document{}
	}
	return out, nil
}

// GetDocument fetches one document.
func (c *Client) GetDocument(ctx context.Context, id string) (types.Document, error) {
	var out types.Document
	err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &out)
	return out, err
}

// GetSchemas fetches the knowledge unit schemas.
func (c *Client) GetSchemas(ctx context.Context) ([]types.KnowledgeUnitSchema, error) {
	var out []types.KnowledgeUnitSchema
	err := c.do(ctx, http.MethodGet, "/schemas", nil, &out)
	return out, err
}

// GetCustomFieldTypes fetches the custom composite field types.
func (c *Client) GetCustomFieldTypes(ctx context.Context) ([]types.CustomFieldType, error) {
	var out []types.CustomFieldType
	err := c.do(ctx, http.MethodGet, "/schemas/custom-fields", nil, &out)
	return out, err
}

// GetAnnotationsForDocument fetches the knowledge units of a document.
func (c *Client) GetAnnotationsForDocument(ctx context.Context, documentID string) ([]types.KnowledgeUnit, error) {
	var out []types.KnowledgeUnit
	err := c.do(ctx, http.MethodGet, "/annotations/document/"+url.PathEscape(documentID), nil, &out)
	return out, err
}

// SaveOrUpdateKU updates a knowledge unit, creating it when the server
// does not know its id yet.
func (c *Client) SaveOrUpdateKU(ctx context.Context, ku types.KnowledgeUnit) (types.KnowledgeUnit, error) {
	var out types.KnowledgeUnit
	err := c.do(ctx, http.MethodPut, "/annotations/"+url.PathEscape(ku.ID), ku, &out)
	if errors.Is(err, ErrNotFound) {
		err = c.do(ctx, http.MethodPost, "/annotations", ku, &out)
	}
	if err != nil {
		return types.KnowledgeUnit{}, err
	}
	return out, nil
}

// DeleteKU deletes a knowledge unit. Deleting an id the server does not
// know is not an error.
func (c *Client) DeleteKU(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/annotations/"+url.PathEscape(id), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ExportAnnotations fetches the server-side export of a document.
func (c *Client) ExportAnnotations(ctx context.Context, documentID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/annotations/export/"+url.PathEscape(documentID), nil, &out)
	return out, err
}
