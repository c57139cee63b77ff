package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lfind/internal/app"
	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/config"
	"github.com/dshills/lfind/internal/indexer"
	"github.com/dshills/lfind/internal/logging"
	"github.com/dshills/lfind/internal/pipeline"
	"github.com/dshills/lfind/pkg/types"
)

type testEnv struct {
	app    *app.App
	server *httptest.Server
	root   string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Index.DBPath = filepath.Join(dir, "metadata.db")
	cfg.Index.VectorPath = filepath.Join(dir, "vectors.idx")
	cfg.Index.VectorIndex = "flat"
	cfg.Embeddings.Provider = "local"
	cfg.Embeddings.Dimension = 32
	cfg.LLM.Hard.Provider = "ollama"

	a, err := app.Open(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(New(a, logging.Discard()).Handler())
	t.Cleanup(srv.Close)

	root := t.TempDir()
	for rel, content := range map[string]string{
		"invoice.txt":      "invoice for consulting",
		"photos/beach.jpg": "",
		"docs/guide.md":    "installation guide",
	} {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return &testEnv{app: a, server: srv, root: root}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) index(t *testing.T) {
	t.Helper()
	resp := e.post(t, "/index", types.IndexRequest{Path: e.root})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	e := setup(t)
	resp := e.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestIndex(t *testing.T) {
	e := setup(t)

	resp := e.post(t, "/index", types.IndexRequest{Path: e.root})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[types.IndexResponse](t, resp)
	assert.Equal(t, 3, body.FilesSeen)
	assert.Equal(t, 3, body.Embedded)

	t.Run("missing path", func(t *testing.T) {
		resp := e.post(t, "/index", types.IndexRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "contract", decode[errorResponse](t, resp).Kind)
	})

	t.Run("unknown field", func(t *testing.T) {
		resp := e.post(t, "/index", map[string]any{"path": e.root, "force": true})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("busy", func(t *testing.T) {
		lock := indexer.NewFileLock(indexer.LockPathFor(e.app.Config.Index.DBPath))
		ok, err := lock.TryLock()
		require.NoError(t, err)
		require.True(t, ok)
		defer func() { _ = lock.Unlock() }()

		resp := e.post(t, "/index", types.IndexRequest{Path: e.root})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "busy", decode[errorResponse](t, resp).Kind)
	})
}

func TestSearch(t *testing.T) {
	e := setup(t)
	e.index(t)

	t.Run("structural", func(t *testing.T) {
		resp := e.post(t, "/search", types.SearchRequest{Directory: e.root, Extensions: []string{"jpg"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[types.SearchResponse](t, resp)
		require.Len(t, body.Results, 1)
		assert.Equal(t, "beach.jpg", body.Results[0].Name)
	})

	t.Run("semantic", func(t *testing.T) {
		resp := e.post(t, "/search", types.SearchRequest{
			Query: "installation guide", Directory: e.root, Semantic: true, TopK: 1,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[types.SearchResponse](t, resp)
		require.Len(t, body.Results, 1)
		assert.Equal(t, "guide.md", body.Results[0].Name)
		assert.Greater(t, body.Results[0].Score, 0.0)
	})

	t.Run("contract errors", func(t *testing.T) {
		for _, req := range []types.SearchRequest{
			{Semantic: true},
			{TopK: -3},
			{Directory: "relative/dir"},
		} {
			resp := e.post(t, "/search", req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%+v", req)
		}
	})
}

func TestStatus(t *testing.T) {
	e := setup(t)
	e.index(t)

	resp := e.get(t, "/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[app.Status](t, resp)
	assert.Equal(t, 3, status.Files)
	assert.Equal(t, 3, status.Embedded)
	assert.Equal(t, 2, status.ContentEmbeddings)
	assert.Equal(t, 1, status.TitleEmbeddings)
}

func TestTree(t *testing.T) {
	e := setup(t)
	e.index(t)

	q := url.Values{"directory": {e.root}, "ext": {"md,txt"}}
	resp := e.get(t, "/tree?"+q.Encode())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[app.TreeResult](t, resp)
	assert.Equal(t, []string{
		"<Dir: " + filepath.Base(e.root) + ">",
		"<Dir: docs>", "guide.md", "</Dir>",
		"invoice.txt",
		"</Dir>",
	}, body.Lines)

	resp = e.get(t, "/tree?directory="+url.QueryEscape(e.root)+"&max_entries=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.get(t, "/tree")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	e := setup(t)
	e.index(t)

	resp := e.post(t, "/search", types.SearchRequest{Directory: e.root})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[types.SearchResponse](t, resp).SessionID
	e.post(t, "/search", types.SearchRequest{Directory: e.root, Extensions: []string{"md"}})

	type historyBody struct {
		Entries []pipeline.HistoryEntry `json:"entries"`
	}

	all := decode[historyBody](t, e.get(t, "/history"))
	assert.Len(t, all.Entries, 4)

	one := decode[historyBody](t, e.get(t, "/history?session="+session))
	require.Len(t, one.Entries, 2)
	assert.Equal(t, pipeline.SearchStructural, one.Entries[0].SearchType)
	assert.Equal(t, pipeline.SearchMulti, one.Entries[1].SearchType)

	req, err := http.NewRequest(http.MethodDelete, e.server.URL+"/history", nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	assert.Empty(t, decode[historyBody](t, e.get(t, "/history")).Entries)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", indexer.ErrSyncInProgress), http.StatusConflict},
		{apperrors.Contract("op", "bad"), http.StatusBadRequest},
		{apperrors.Store("op", errors.New("disk")), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}
