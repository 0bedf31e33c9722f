// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-annotator/internal/annotation"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

var _ annotation.Backend = (*Client)(nil)

type call struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

type fakeAPI struct {
	mu     sync.Mutex
	calls  []call
	routes map[string]func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
	f.mu.Unlock()

	h, ok := f.routes[r.Method+" "+r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (f *fakeAPI) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func jsonReply(v string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, v)
	}
}

func newTestClient(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{routes: routes}
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	c, err := New(types.APIConfig{URL: ts.URL + "/api/", Token: "tok"},
		WithHTTPClient(ts.Client()), WithRetryDelay(time.Millisecond))
	require.NoError(t, err)
	return c, api
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(types.APIConfig{})
	assert.Error(t, err)
}

func TestGetDocuments(t *testing.T) {
	c, api := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/documents": jsonReply(`{"documents":[{"id":"doc-1","title":"Case","content":"text"}],"metadata":{"total":11,"page":0,"limit":10,"hasMore":true}}`),
	})

	page, err := c.GetDocuments(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "doc-1", page.Documents[0].ID)
	assert.True(t, page.Metadata.HasMore)
	assert.Equal(t, 11, page.Metadata.Total)

	calls := api.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "limit=10&page=0", calls[0].Query)
	assert.Equal(t, "Bearer tok", calls[0].Auth)
}

func TestGetDocumentsEmptyPage(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/documents": jsonReply(`{"metadata":{"total":0,"page":3,"limit":10,"hasMore":false}}`),
	})
	page, err := c.GetDocuments(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Documents)
	assert.Empty(t, page.Documents)
}

func TestGetDocumentNotFound(t *testing.T) {
	c, _ := newTestClient(t, nil)
	_, err := c.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogEndpoints(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/schemas":               jsonReply(`[{"frameId":"s1","frameLabel":"Claim","fields":[]}]`),
		"GET /api/schemas/custom-fields": jsonReply(`[]`),
	})

	schemas, err := c.GetSchemas(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "s1", schemas[0].FrameID)

	custom, err := c.GetCustomFieldTypes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, custom)
}

func TestSaveOrUpdateKU(t *testing.T) {
	ku := types.KnowledgeUnit{ID: "ku1", SchemaID: "s1", DocumentID: "doc-1", Fields: []types.Field{}}

	tests := []struct {
		name      string
		routes    map[string]func(http.ResponseWriter, *http.Request)
		wantCalls []string
		wantErr   bool
	}{
		{
			name: "existing unit is updated in place",
			routes: map[string]func(http.ResponseWriter, *http.Request){
				"PUT /api/annotations/ku1": jsonReply(`{"id":"ku1","schemaId":"s1","documentId":"doc-1","fields":[]}`),
			},
			wantCalls: []string{"PUT /api/annotations/ku1"},
		},
		{
			name: "unknown unit falls back to create",
			routes: map[string]func(http.ResponseWriter, *http.Request){
				"POST /api/annotations": jsonReply(`{"id":"ku1","schemaId":"s1","documentId":"doc-1","fields":[]}`),
			},
			wantCalls: []string{"PUT /api/annotations/ku1", "POST /api/annotations"},
		},
		{
			name: "server error is returned",
			routes: map[string]func(http.ResponseWriter, *http.Request){
				"PUT /api/annotations/ku1": func(w http.ResponseWriter, r *http.Request) {
					http.Error(w, "boom", http.StatusInternalServerError)
				},
			},
			wantCalls: []string{"PUT /api/annotations/ku1"},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, api := newTestClient(t, tt.routes)
			got, err := c.SaveOrUpdateKU(context.Background(), ku)

			var methods []string
			for _, cl := range api.recorded() {
				methods = append(methods, cl.Method+" "+cl.Path)
			}
			assert.Equal(t, tt.wantCalls, methods)

			if tt.wantErr {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusInternalServerError, se.Code)
				assert.Equal(t, "boom", se.Body)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ku1", got.ID)

			var sent types.KnowledgeUnit
			require.NoError(t, json.Unmarshal([]byte(api.recorded()[0].Body), &sent))
			assert.Equal(t, "doc-1", sent.DocumentID)
		})
	}
}

func TestDeleteKU(t *testing.T) {
	c, api := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"DELETE /api/annotations/ku1": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	})
	require.NoError(t, c.DeleteKU(context.Background(), "ku1"))
	require.NoError(t, c.DeleteKU(context.Background(), "gone"))
	assert.Len(t, api.recorded(), 2)
}

func TestExportAnnotations(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/annotations/export/doc-1": jsonReply(`{"documentId":"doc-1","title":"Case","knowledgeUnits":[]}`),
	})
	raw, err := c.ExportAnnotations(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"documentId":"doc-1","title":"Case","knowledgeUnits":[]}`, string(raw))
}

func TestThrottledRequestIsRetried(t *testing.T) {
	var mu sync.Mutex
	n := 0
	c, api := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /api/annotations/document/doc-1": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			n++
			first := n == 1
			mu.Unlock()
			if first {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			io.WriteString(w, `[{"id":"ku1","schemaId":"s1","documentId":"doc-1","fields":[]}]`)
		},
	})
	units, err := c.GetAnnotationsForDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Len(t, api.recorded(), 2)
}
