package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dgallion1/hl7lens/internal/selection"
)

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON request body no larger than the upload limit.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// parseSelection accepts null, a dotted path string ("1.3.0") or a path
// object ({"segment":1,"field":3}). An absent value is no selection.
func parseSelection(raw json.RawMessage) (selection.Selection, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return selection.None, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return selection.None, fmt.Errorf("%w: %v", selection.ErrInvalidPath, err)
		}
		if text == "" {
			return selection.None, nil
		}
		p, err := selection.ParsePath(text)
		if err != nil {
			return selection.None, err
		}
		return selection.Select(p), nil
	}
	var sel selection.Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return selection.None, err
	}
	return sel, nil
}
