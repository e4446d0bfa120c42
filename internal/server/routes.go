package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/sqltrace/internal/dag"
	"github.com/leapstack-labs/sqltrace/internal/state"
)

// sourceHTTP is recorded as the source of runs saved by the server.
const sourceHTTP = "http"

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)

	if s.store == nil {
		return
	}
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
	})
	r.Get("/lineage/{table}", s.handleLineage)
	r.Get("/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sqlText, err := decodeSQL(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.analyzer.Analyze(sqlText)

	if s.store != nil {
		run, err := s.store.SaveRun(r.Context(), sourceHTTP, sqlText, result)
		if err != nil {
			s.logger.Error("failed to save run", "error", err)
		} else {
			w.Header().Set("X-Run-ID", run.ID)
			s.notifier.Broadcast()
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// decodeSQL reads {"sql": "..."}. A missing or non-string sql field is
// treated as an empty batch; a body that is not a JSON object is an error.
func decodeSQL(body io.Reader) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", err
		}
		return "", fmt.Errorf("invalid JSON body: %w", err)
	}
	if payload == nil {
		return "", errors.New("invalid JSON body: expected an object")
	}

	raw, ok := payload["sql"]
	if !ok {
		return "", nil
	}
	var sqlText string
	if err := json.Unmarshal(raw, &sqlText); err != nil {
		return "", nil
	}
	return sqlText, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.store.LoadResult(r.Context(), id)
	if errors.Is(err, state.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to load run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// lineageResponse is the body of GET /lineage/{table}.
type lineageResponse struct {
	Table      string    `json:"table"`
	Upstream   []dag.Hop `json:"upstream"`
	Downstream []dag.Hop `json:"downstream"`
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "depth must be an integer")
			return
		}
		depth = n
	}

	edges, err := s.store.LineageEdges(r.Context())
	if err != nil {
		s.logger.Error("failed to load lineage", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load lineage")
		return
	}

	g := dag.FromEdges(edges)
	resp := lineageResponse{Table: table}
	if resp.Upstream, err = g.Upstream(table, depth); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if resp.Downstream, err = g.Downstream(table, depth); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams a server-sent event every time a run is saved.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			if _, err := fmt.Fprint(w, "event: run\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
