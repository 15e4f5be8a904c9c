package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/pyblocks/internal/definitions"
	"github.com/leapstack-labs/pyblocks/internal/sandbox"
	"github.com/leapstack-labs/pyblocks/internal/state"
	"github.com/leapstack-labs/pyblocks/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloDoc = `{
	"version": "1.0",
	"timestamp": 1700000000,
	"workspace": {"blocks": [
		{"block_type": "Print", "position": {"x": 0, "y": 0},
		 "inputs": {"message": {"kind": "slot", "value": "\"Hello\""}}}
	]}
}`

func newTestServer(t *testing.T, withSnapshots bool) *Server {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	defs, err := definitions.NewStore(definitions.Options{Logger: logger})
	require.NoError(t, err)

	cfg := Config{
		Definitions: defs,
		Runner:      sandbox.New(sandbox.Options{Timeout: 2 * time.Second, Logger: logger}),
		Version:     "1.0",
		Logger:      logger,
	}
	if withSnapshots {
		store := state.NewSQLiteStore()
		require.NoError(t, store.Open(":memory:"))
		require.NoError(t, store.Migrate())
		t.Cleanup(func() { _ = store.Close() })
		cfg.Snapshots = store
	}
	return NewServer(cfg)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, false).Handler()
	rec := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0", resp.Version)
	assert.Equal(t, uint64(1), resp.Generation)
	assert.Equal(t, 33, resp.Blocks)
}

func TestDefinitions(t *testing.T) {
	h := newTestServer(t, false).Handler()
	rec := do(t, h, http.MethodGet, "/api/definitions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Generation uint64 `json:"generation"`
		Categories []struct {
			Name   string `json:"name"`
			Blocks []struct {
				BlockType    string `json:"block_type"`
				CodeTemplate string `json:"code_template"`
			} `json:"blocks"`
		} `json:"categories"`
		NestingRules map[string]map[string]json.RawMessage `json:"nesting_rules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.NotEmpty(t, resp.Categories)
	assert.Equal(t, "Basic", resp.Categories[0].Name)
	assert.Equal(t, "Print", resp.Categories[0].Blocks[0].BlockType)
	assert.Equal(t, "print({message})", resp.Categories[0].Blocks[0].CodeTemplate)
	assert.Contains(t, resp.NestingRules, "If")
}

func TestCandidates(t *testing.T) {
	h := newTestServer(t, false).Handler()

	rec := do(t, h, http.MethodGet, "/api/definitions/If/inputs/condition/candidates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[candidatesResponse](t, rec)
	assert.Contains(t, resp.Candidates, "Compare")
	assert.NotContains(t, resp.Candidates, "StringValue")
	assert.NotContains(t, resp.Candidates, "Print")

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown block", "/api/definitions/Nope/inputs/x/candidates", http.StatusNotFound},
		{"unknown input", "/api/definitions/If/inputs/nope/candidates", http.StatusNotFound},
		{"not a slot", "/api/definitions/Compare/inputs/operator/candidates", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestGenerate(t *testing.T) {
	h := newTestServer(t, false).Handler()

	rec := do(t, h, http.MethodPost, "/api/generate", helloDoc)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[generateResponse](t, rec)
	assert.Equal(t, "print(\"Hello\")\n", resp.Code)
	assert.Equal(t, 1, resp.Blocks)
	assert.Empty(t, resp.Warnings)
}

func TestGenerate_Warnings(t *testing.T) {
	h := newTestServer(t, false).Handler()
	doc := `{"version": "0.9", "workspace": {"blocks": [
		{"block_type": "Ghost", "inputs": {}},
		{"block_type": "Comment", "inputs": {"text": {"kind": "value", "value": "kept"}}}
	]}}`

	rec := do(t, h, http.MethodPost, "/api/generate", doc)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[generateResponse](t, rec)
	assert.Equal(t, "# kept\n", resp.Code)
	require.Len(t, resp.Warnings, 2)
	assert.Contains(t, resp.Warnings[0], "version")
	assert.Contains(t, resp.Warnings[1], "Ghost")
}

func TestGenerate_BadBody(t *testing.T) {
	h := newTestServer(t, false).Handler()
	rec := do(t, h, http.MethodPost, "/api/generate", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "invalid project document")
}

func TestRun(t *testing.T) {
	h := newTestServer(t, false).Handler()

	rec := do(t, h, http.MethodPost, "/api/run", helloDoc)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Code   string `json:"code"`
		Result struct {
			Output []string `json:"output"`
		} `json:"result"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "print(\"Hello\")\n", resp.Code)
	assert.Equal(t, []string{"Hello"}, resp.Result.Output)
	assert.Empty(t, resp.Error)
}

func TestRun_ExecutionError(t *testing.T) {
	h := newTestServer(t, false).Handler()
	doc := `{"version": "1.0", "workspace": {"blocks": [
		{"block_type": "Print", "inputs": {"message": {"kind": "slot", "value": "undefined_name"}}}
	]}}`

	rec := do(t, h, http.MethodPost, "/api/run", doc)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Error     string `json:"error"`
		ErrorKind string `json:"error_kind"`
		Line      int    `json:"line"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "undefined_name")
	assert.Equal(t, "syntax", resp.ErrorKind)
	assert.Equal(t, 1, resp.Line)
}

func TestSnapshots(t *testing.T) {
	h := newTestServer(t, true).Handler()

	rec := do(t, h, http.MethodPost, "/api/snapshots?project=demo", helloDoc)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[state.Snapshot](t, rec)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, 1, saved.BlockCount)
	assert.Empty(t, saved.Document)

	rec = do(t, h, http.MethodGet, "/api/snapshots?project=demo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]state.Snapshot](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	rec = do(t, h, http.MethodGet, "/api/snapshots/"+saved.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		ID       string `json:"id"`
		Document struct {
			Version string `json:"version"`
		} `json:"document"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "1.0", got.Document.Version)

	rec = do(t, h, http.MethodGet, "/api/snapshots?project=empty", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestSnapshots_Errors(t *testing.T) {
	h := newTestServer(t, true).Handler()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"save without project", http.MethodPost, "/api/snapshots", helloDoc, http.StatusBadRequest},
		{"save bad body", http.MethodPost, "/api/snapshots?project=demo", "nope", http.StatusBadRequest},
		{"list without project", http.MethodGet, "/api/snapshots", "", http.StatusBadRequest},
		{"list bad limit", http.MethodGet, "/api/snapshots?project=demo&limit=x", "", http.StatusBadRequest},
		{"get missing", http.MethodGet, "/api/snapshots/missing", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestSnapshots_NotConfigured(t *testing.T) {
	h := newTestServer(t, false).Handler()
	rec := do(t, h, http.MethodGet, "/api/snapshots?project=demo", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEvents(t *testing.T) {
	srv := newTestServer(t, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				if name != "" {
					return name, data
				}
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	name, data := readEvent()
	assert.Equal(t, "hello", name)
	assert.JSONEq(t, `{"generation": 1}`, data)

	_, err = srv.defs.Reload()
	require.NoError(t, err)

	name, data = readEvent()
	assert.Equal(t, "definitions", name)
	assert.Contains(t, data, `"generation":2`)
}
