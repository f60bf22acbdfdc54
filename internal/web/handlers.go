package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/JonMunkholm/rowstream/internal/core"
	"github.com/JonMunkholm/rowstream/internal/decode"
	"github.com/JonMunkholm/rowstream/internal/logging"
	"github.com/JonMunkholm/rowstream/internal/stream"
	"github.com/JonMunkholm/rowstream/internal/web/templates"
)

// flushEvery is how many NDJSON lines are written between flushes.
const flushEvery = 100

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"database": s.service.HasSink(),
		"imports":  s.service.LimiterStatus(),
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ListTables())
}

// openOptions reads the per-request decoding options from the query string.
func openOptions(r *http.Request, size int64) core.OpenOptions {
	q := r.URL.Query()
	return core.OpenOptions{
		Charset:  q.Get("charset"),
		Size:     size,
		NoHeader: q.Get("header") == "false",
	}
}

// decodeLine is one line of the NDJSON decode response.
type decodeLine struct {
	Line   int          `json:"line"`
	Record *core.Record `json:"record,omitempty"`
	Error  *lineError   `json:"error,omitempty"`
}

type lineError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Column  string `json:"column,omitempty"`
}

func newLineError(err error) *lineError {
	le := &lineError{
		Kind:    decode.KindOf(err).String(),
		Message: err.Error(),
		Code:    core.MapError(err).Code,
	}
	if de, ok := err.(*decode.Error); ok {
		le.Column = de.Column
	}
	return le
}

// handleDecode streams one NDJSON line per row position of the upload.
//
// Query parameters:
//
//	charset=   source encoding label (default: configured charset)
//	header=false  the first line is data
//	failures=only only rows that failed to decode
//	columns=   comma-separated columns to keep in each record
//	limit=     stop after this many lines
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	up, err := s.openUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	rs, err := s.service.Open(r.Context(), tableKey, up, openOptions(r, up.size))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	q := r.URL.Query()
	var it stream.Iterator[core.Record] = rs
	if q.Get("failures") == "only" {
		it = stream.FilterSuccess(it, func(core.Record) bool { return false })
	}
	if cols := q.Get("columns"); cols != "" {
		names := strings.Split(cols, ",")
		it = stream.MapSuccess(it, func(rec core.Record) core.Record {
			return rec.Project(names)
		})
	}
	limit := parseIntParam(r, "limit", 0)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	logger := logging.FromContext(r.Context())

	written, failed := 0, 0
	for res := range stream.All(it) {
		line := decodeLine{Line: rs.Line()}
		if rec, err := res.Get(); err != nil {
			failed++
			if de, ok := err.(*decode.Error); ok && de.Line > 0 {
				line.Line = de.Line
			}
			line.Error = newLineError(err)
		} else {
			line.Record = &rec
		}
		if err := enc.Encode(line); err != nil {
			logger.Warn("decode stream aborted", "error", err, "written", written)
			return
		}
		written++
		if flusher != nil && written%flushEvery == 0 {
			flusher.Flush()
		}
		if limit > 0 && written >= limit {
			break
		}
	}

	logger.Info("decode stream finished",
		"table", tableKey,
		"lines", written,
		"failed", failed,
		"bytes", rs.BytesRead(),
	)
}

// importResponse is the JSON body of an import response.
type importResponse struct {
	*core.ImportResult
	Failure *ErrorResponse `json:"failure,omitempty"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.service.HasSink() {
		s.respondError(w, r, core.ErrNoSink, http.StatusServiceUnavailable)
		return
	}
	tableKey := chi.URLParam(r, "tableKey")

	up, err := s.openUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	result, err := s.service.Import(r.Context(), tableKey, up.name, up, openOptions(r, up.size))
	if err != nil {
		if result == nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		status := statusFor(err)
		logging.FromContext(r.Context()).Error("import aborted",
			"table", tableKey,
			"file", up.name,
			"status", status,
			"error", err,
		)
		writeJSON(w, r, status, importResponse{ImportResult: result, Failure: newErrorResponse(err)})
		return
	}

	writeJSON(w, r, http.StatusCreated, importResponse{ImportResult: result})
}

// handlePreview renders the first rows of an upload as an HTML fragment.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	up, err := s.openUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	rs, err := s.service.Open(r.Context(), tableKey, up, openOptions(r, up.size))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer rs.Close()

	data := templates.PreviewData{
		TableKey: rs.Def.Info.Key,
		Label:    rs.Def.Info.Label,
		Columns:  rs.Def.Info.Columns,
	}
	limit := s.cfg.Decode.PreviewRows
	for res := range stream.All[core.Record](rs) {
		if len(data.Rows) == limit {
			data.Truncated = true
			break
		}
		row := templates.PreviewRow{Line: rs.Line()}
		if rec, err := res.Get(); err != nil {
			data.Failed++
			if de, ok := err.(*decode.Error); ok && de.Line > 0 {
				row.Line = de.Line
			}
			row.Error = err.Error()
			row.Code = core.MapError(err).Code
		} else {
			data.Decoded++
			row.Values = rec.Strings()
		}
		data.Rows = append(data.Rows, row)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Preview(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render preview", "error", err)
	}
}
