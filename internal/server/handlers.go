package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/ingest"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/fbz-tec/chxport/core/tasks"
	"github.com/go-chi/chi/v5"
)

const (
	kindExport = "export"
	kindImport = "import"
	kindJoin   = "join"
)

type transferResponse struct {
	ID string `json:"id"`
}

type uploadResponse struct {
	FilePath string `json:"filePath"`
	Lines    int    `json:"lines"`
}

type previewStoreRequest struct {
	Config  config.Connection       `json:"config"`
	Columns records.ColumnSelection `json:"columns"`
}

// connectionFromQuery reads host, port, database, user, jwtToken and secure,
// falling back to the server's configured connection.
func (s *Server) connectionFromQuery(r *http.Request) (config.Connection, error) {
	q := r.URL.Query()
	conn := config.Connection{
		Host:     q.Get("host"),
		Database: q.Get("database"),
		User:     q.Get("user"),
		Token:    q.Get("jwtToken"),
	}
	if p := q.Get("port"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return conn, errors.New("port must be an integer")
		}
		conn.Port = port
	}
	if v := q.Get("secure"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return conn, errors.New("secure must be a boolean")
		}
		conn.Secure = secure
	}
	conn = conn.WithDefaults(s.deps.Defaults)
	return conn, conn.Validate()
}

func fileConfigFromQuery(r *http.Request) records.FlatFileConfig {
	q := r.URL.Query()
	delim := q.Get("delimiter")
	if delim == "" {
		delim = ","
	}
	return records.FlatFileConfig{FilePath: q.Get("filePath"), Delimiter: delim}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid request body: %v", err)
		return false
	}
	return true
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	conn, err := s.connectionFromQuery(r)
	if err != nil {
		badRequest(w, "%v", err)
		return
	}

	tables, err := s.deps.Service.ListTables(r.Context(), conn)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, tables)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	conn, err := s.connectionFromQuery(r)
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	table := r.URL.Query().Get("table")
	if table == "" {
		badRequest(w, "missing table")
		return
	}

	cols, err := s.deps.Service.ListColumns(r.Context(), conn, table)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, cols)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "no file provided")
		return
	}
	defer file.Close()

	delim := r.FormValue("delimiter")
	if delim == "" {
		delim = ","
	}
	if _, err := records.ParseDelimiter(delim); err != nil {
		respondError(w, r, err)
		return
	}

	path, err := s.deps.Uploads.Save(header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	lines, err := s.deps.Service.ValidateFile(records.FlatFileConfig{FilePath: path, Delimiter: delim})
	if err != nil {
		s.deps.Uploads.Discard(path)
		respondError(w, r, err)
		return
	}

	writeJSON(w, uploadResponse{FilePath: path, Lines: lines})
}

func (s *Server) handleFileHeaders(w http.ResponseWriter, r *http.Request) {
	header, err := s.deps.Service.FileHeaders(fileConfigFromQuery(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, header)
}

func (s *Server) handlePreviewStore(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if table == "" {
		badRequest(w, "missing table")
		return
	}

	var req previewStoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	conn := req.Config.WithDefaults(s.deps.Defaults)
	if err := conn.Validate(); err != nil {
		badRequest(w, "%v", err)
		return
	}

	rows, err := s.deps.Service.PreviewStore(r.Context(), conn, table, req.Columns)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handlePreviewFile(w http.ResponseWriter, r *http.Request) {
	cols := records.ParseColumns(r.URL.Query().Get("columns"))

	recs, err := s.deps.Service.PreviewFile(fileConfigFromQuery(r), cols)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []records.Record{}
	}
	writeJSON(w, recs)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Tracker.Get(chi.URLParam(r, "id")))
}

func (s *Server) handleProgressDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.deps.Tracker.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown transfer: "+id)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Runner.Cancel(id) {
		writeError(w, http.StatusNotFound, "no queued or running transfer: "+id)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ingest.ExportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Table == "" {
		req.Table = r.URL.Query().Get("table")
	}
	req.Connection = req.Connection.WithDefaults(s.deps.Defaults)

	s.submit(w, r, kindExport, func(ctx context.Context, report func(int)) (int, error) {
		req.OnProgress = report
		res, err := s.deps.Service.ExportTable(ctx, req)
		return res.Rows, err
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ingest.ImportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Table == "" {
		req.Table = r.URL.Query().Get("table")
	}
	req.Connection = req.Connection.WithDefaults(s.deps.Defaults)

	s.submit(w, r, kindImport, func(ctx context.Context, report func(int)) (int, error) {
		req.OnProgress = report
		res, err := s.deps.Service.Import(ctx, req)
		return res.Rows, err
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req ingest.JoinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Connection = req.Connection.WithDefaults(s.deps.Defaults)

	s.submit(w, r, kindJoin, func(ctx context.Context, report func(int)) (int, error) {
		req.OnProgress = report
		res, err := s.deps.Service.ExportJoin(ctx, req)
		return res.Rows, err
	})
}

// submit queues fn and answers 202 with the transfer id to poll.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, kind string, fn tasks.Func) {
	id, err := s.deps.Runner.Submit(kind, fn)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/progress/"+id)
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, transferResponse{ID: id})
}
