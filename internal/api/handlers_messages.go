package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/hl7lens/internal/definition"
	"github.com/dgallion1/hl7lens/internal/hl7"
	"github.com/dgallion1/hl7lens/internal/source"
)

type textRequest struct {
	Text      string          `json:"text"`
	Selection json.RawMessage `json:"selection,omitempty"`
}

func (s *Server) parseText(w http.ResponseWriter, r *http.Request) (textRequest, hl7.Message, bool) {
	var req textRequest
	if !s.decodeBody(w, r, &req) {
		return req, hl7.Message{}, false
	}
	return req, s.engine.Parse(req.Text), true
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	_, msg, ok := s.parseText(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.engine.Definitions().VersionOf(&msg),
		"valid":   len(msg.Errors) == 0,
		"message": msg,
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	_, msg, ok := s.parseText(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  s.engine.Definitions().VersionOf(&msg),
		"errors":   msg.Errors,
		"sections": s.engine.Map(&msg),
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	req, msg, ok := s.parseText(w, r)
	if !ok {
		return
	}
	sel, err := parseSelection(req.Selection)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"errors":    msg.Errors,
		"selection": sel,
		"tree":      s.engine.Tree(&msg, sel),
	})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	defs := s.engine.Definitions()
	writeJSON(w, http.StatusOK, map[string]any{
		"default":  defs.DefaultVersion(),
		"versions": defs.Versions(),
	})
}

func (s *Server) handleSegmentDefinition(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	segment := strings.ToUpper(chi.URLParam(r, "segment"))

	seg, ok := s.engine.Definitions().SegmentDefinition(segment, version)
	if !ok {
		jsonError(w, fmt.Sprintf("no definition for %s in version %s", segment, version), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    definition.Canonical(version),
		"segment":    segment,
		"definition": seg,
	})
}

func (s *Server) handleFieldDefinition(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	segment := strings.ToUpper(chi.URLParam(r, "segment"))
	number, err := strconv.Atoi(chi.URLParam(r, "field"))
	if err != nil || number < 1 {
		jsonError(w, "field must be a positive field number", http.StatusBadRequest)
		return
	}

	f, ok := s.engine.Definitions().FieldDefinition(segment, number, version)
	if !ok {
		jsonError(w, fmt.Sprintf("no definition for %s-%d in version %s", segment, number, version), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    definition.Canonical(version),
		"field":      fmt.Sprintf("%s-%d", segment, number),
		"definition": f,
	})
}

type saveRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	saved, err := s.messages.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list messages: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": saved})
}

// handleSaveMessage stores a named message. A name that already exists is
// left untouched and reported with saved=false.
func (s *Server) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.TrimSpace(req.Text) == "" {
		jsonError(w, "name and text are required", http.StatusBadRequest)
		return
	}

	added, err := s.messages.Save(r.Context(), req.Name, req.Text)
	if err != nil {
		jsonError(w, "failed to save message: "+err.Error(), http.StatusInternalServerError)
		return
	}
	code := http.StatusOK
	if added {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{"name": req.Name, "saved": added})
}

type candidate struct {
	Text     string   `json:"text"`
	Type     string   `json:"type,omitempty"`
	Version  string   `json:"version"`
	Segments int      `json:"segments"`
	Errors   []string `json:"errors"`
}

// handleExtract scans an uploaded document for HL7 messages.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	extractor, err := source.ForFile(filename)
	if err != nil {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", ext), http.StatusBadRequest)
		return
	}
	if pdf, ok := extractor.(*source.PDFExtractor); ok {
		pdf.FallbackPdftotext = s.cfg.PDFFallbackPdftotext
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	texts, err := extractor.Extract(bytes.NewReader(data), filename)
	s.metrics.ObserveExtraction(ext, err == nil)
	if err != nil {
		s.log.Warn("extraction failed", "filename", filename, "error", err)
		code := http.StatusUnprocessableEntity
		if errors.Is(err, source.ErrUnsupported) {
			code = http.StatusBadRequest
		}
		jsonError(w, "failed to extract messages: "+err.Error(), code)
		return
	}

	defs := s.engine.Definitions()
	candidates := make([]candidate, 0, len(texts))
	for _, text := range texts {
		msg := s.engine.Parse(text)
		c := candidate{
			Text:     text,
			Version:  defs.VersionOf(&msg),
			Segments: len(msg.Segments),
			Errors:   msg.Errors,
		}
		if h, ok := msg.Header(); ok {
			c.Type = h.Value(9)
		}
		candidates = append(candidates, c)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename": filename,
		"messages": candidates,
	})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
