package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pyblocks/internal/block"
	"github.com/leapstack-labs/pyblocks/internal/codegen"
	"github.com/leapstack-labs/pyblocks/internal/nesting"
	"github.com/leapstack-labs/pyblocks/internal/project"
	"github.com/leapstack-labs/pyblocks/internal/sandbox"
	"github.com/leapstack-labs/pyblocks/internal/state"
	"github.com/leapstack-labs/pyblocks/pkg/core"
)

const (
	maxBodyBytes     = 10 << 20
	defaultListLimit = 50
	keepAlive        = 30 * time.Second
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Generation uint64 `json:"generation"`
	Blocks     int    `json:"blocks"`
}

type definitionView struct {
	BlockType string `json:"block_type"`
	*core.BlockDefinition
}

type categoryView struct {
	Name   string           `json:"name"`
	Blocks []definitionView `json:"blocks"`
}

type definitionsResponse struct {
	Generation   uint64         `json:"generation"`
	LoadedAt     time.Time      `json:"loaded_at"`
	Categories   []categoryView `json:"categories"`
	NestingRules *nesting.Rules `json:"nesting_rules"`
}

type candidatesResponse struct {
	BlockType  string   `json:"block_type"`
	Input      string   `json:"input"`
	Candidates []string `json:"candidates"`
}

type generateResponse struct {
	Code     string   `json:"code"`
	Blocks   int      `json:"blocks"`
	Warnings []string `json:"warnings"`
}

type runResponse struct {
	generateResponse
	Result    *sandbox.Result `json:"result"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Line      int             `json:"line,omitempty"`
}

type snapshotView struct {
	*state.Snapshot
	Document json.RawMessage `json:"document,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c := s.defs.Catalog()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Version:    s.version,
		Generation: c.Generation(),
		Blocks:     c.Len(),
	})
}

func (s *Server) handleDefinitions(w http.ResponseWriter, _ *http.Request) {
	c := s.defs.Catalog()
	resp := definitionsResponse{
		Generation:   c.Generation(),
		LoadedAt:     c.LoadedAt(),
		NestingRules: c.Rules(),
	}
	for _, cat := range c.Categories() {
		view := categoryView{Name: cat.Name}
		for _, t := range cat.Types {
			def, _ := c.Lookup(t)
			view.Blocks = append(view.Blocks, definitionView{BlockType: t, BlockDefinition: def})
		}
		resp.Categories = append(resp.Categories, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	blockType := chi.URLParam(r, "blockType")
	inputName := chi.URLParam(r, "input")

	c := s.defs.Catalog()
	def, ok := c.Lookup(blockType)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", block.ErrUnknownBlockType, blockType))
		return
	}
	spec, ok := def.Input(inputName)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("block %q has no input %q", blockType, inputName))
		return
	}
	if spec.Kind != core.InputSlot {
		writeError(w, http.StatusBadRequest, fmt.Errorf("input %q of block %q is not a slot", inputName, blockType))
		return
	}

	writeJSON(w, http.StatusOK, candidatesResponse{
		BlockType:  blockType,
		Input:      inputName,
		Candidates: nonNil(c.Candidates(blockType, inputName)),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	resp, err := s.generate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	gen, err := s.generate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.runner.Run(r.Context(), gen.Code)
	resp := runResponse{generateResponse: *gen, Result: res}
	if err != nil {
		resp.Error = err.Error()
		var execErr *sandbox.ExecutionError
		switch {
		case errors.As(err, &execErr):
			resp.ErrorKind = execErr.Kind
			resp.Line = execErr.Line
		case errors.Is(err, sandbox.ErrTimeout):
			resp.ErrorKind = "timeout"
		case errors.Is(err, sandbox.ErrStepLimit):
			resp.ErrorKind = "step_limit"
		default:
			resp.ErrorKind = "cancelled"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireSnapshots(w) {
		return
	}
	name := r.URL.Query().Get("project")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing project query parameter"))
		return
	}
	doc, err := decodeDocument(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := s.snapshots.SaveSnapshot(r.Context(), name, doc)
	if err != nil {
		s.logger.Error("failed to save snapshot", slog.String("project", name), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	snap.Document = nil
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.requireSnapshots(w) {
		return
	}
	name := r.URL.Query().Get("project")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing project query parameter"))
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	snaps, err := s.snapshots.ListSnapshots(r.Context(), name, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if snaps == nil {
		snaps = []*state.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireSnapshots(w) {
		return
	}
	snap, err := s.snapshots.GetSnapshot(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, state.ErrSnapshotNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView{Snapshot: snap, Document: snap.Document})
}

// handleEvents streams notifier events as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	_, _ = fmt.Fprintf(w, "event: hello\ndata: {\"generation\":%d}\n\n", s.defs.Catalog().Generation())
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

// generate builds a workspace from the posted document and renders it.
func (s *Server) generate(r *http.Request) (*generateResponse, error) {
	doc, err := decodeDocument(r)
	if err != nil {
		return nil, err
	}

	c := s.defs.Catalog()
	ws := block.NewWorkspace(c, c.Rules())
	res, err := project.FromDocument(doc, ws, project.LoadOptions{Version: s.version, Logger: s.logger})
	if err != nil {
		return nil, err
	}

	resp := &generateResponse{
		Code:     codegen.New(s.genOpts).Program(ws),
		Blocks:   ws.Len(),
		Warnings: make([]string, 0, len(res.Warnings)),
	}
	for _, warn := range res.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	return resp, nil
}

func (s *Server) requireSnapshots(w http.ResponseWriter) bool {
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("snapshot storage is not configured"))
		return false
	}
	return true
}

func decodeDocument(r *http.Request) (*project.Document, error) {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	doc, err := project.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("invalid project document: %w", err)
	}
	return doc, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
