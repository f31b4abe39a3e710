package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/hl7lens/internal/config"
	"github.com/dgallion1/hl7lens/internal/definition"
	"github.com/dgallion1/hl7lens/internal/metrics"
	"github.com/dgallion1/hl7lens/internal/parser"
	"github.com/dgallion1/hl7lens/internal/session"
	"github.com/dgallion1/hl7lens/internal/store"
	"github.com/dgallion1/hl7lens/internal/tree"
)

const (
	apiKey = "test-key"

	adt = "MSH|^~\\&|APP|FAC|||20250101||ADT^A01|MSG1|P|2.3\r" +
		"PID|1||12345^^^HOSP||Doe^John^Q||19800101|M"
	oru = "MSH|^~\\&|LAB|FAC|||20250101||ORU^R01|MSG2|P|2.5\r" +
		"OBX|1|NM|GLU^Glucose||98|mg/dL"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	defs, err := definition.Load("", definition.WithLogger(log))
	require.NoError(t, err)

	reg := metrics.New(time.Hour)
	engine := session.NewEngine(parser.New(parser.Options{DeriveDelimiters: true}), defs, reg)
	cfg := config.Config{
		APIKey:         apiKey,
		StoreBackend:   config.BackendMemory,
		MaxUploadBytes: 1 << 20,
		StatsWindow:    time.Hour,
	}
	return NewServer(engine, session.NewStore(engine, time.Hour, 10, log), store.NewMemory(), reg, log, cfg)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/definitions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/definitions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid api key")
}

func TestParse(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, "POST", "/api/parse", map[string]string{"text": adt})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Version string `json:"version"`
		Valid   bool   `json:"valid"`
		Message struct {
			Segments []struct {
				Name string `json:"name"`
			} `json:"segments"`
			Delimiters map[string]string `json:"delimiters"`
		} `json:"message"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Valid)
	assert.Equal(t, "2.3", resp.Version)
	require.Len(t, resp.Message.Segments, 2)
	assert.Equal(t, "PID", resp.Message.Segments[1].Name)
	assert.NotEmpty(t, resp.Message.Delimiters)
}

func TestParse_Invalid(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, "POST", "/api/parse", map[string]string{"text": "PID|1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Valid   bool `json:"valid"`
		Message struct {
			Errors []string `json:"errors"`
		} `json:"message"`
	}
	decode(t, rec, &resp)
	assert.False(t, resp.Valid)
	assert.Equal(t, []string{parser.ErrMissingHeader}, resp.Message.Errors)
}

func TestParse_BadBody(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", "/api/parse", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+apiKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMap(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, "POST", "/api/map", map[string]string{"text": oru})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sections []struct {
			Name string `json:"name"`
		} `json:"sections"`
	}
	decode(t, rec, &resp)
	var names []string
	for _, s := range resp.Sections {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Message Header", "Observation: GLU^Glucose"}, names)
}

func TestTree_WithSelection(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, "POST", "/api/tree", map[string]any{"text": adt, "selection": "1.5"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Selection map[string]int `json:"selection"`
		Tree      *tree.Node     `json:"tree"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, map[string]int{"segment": 1, "field": 5}, resp.Selection)
	require.NotNil(t, resp.Tree)
	assert.Equal(t, "ADT", resp.Tree.Label)

	selected := resp.Tree.SelectedNodes()
	require.Len(t, selected, 1)
	assert.Equal(t, "PID-5: Patient Name", selected[0].Label)
}

func TestTree_SelectionObjectAndNull(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, "POST", "/api/tree", map[string]any{
		"text":      adt,
		"selection": map[string]int{"segment": 1},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Tree *tree.Node `json:"tree"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Tree.SelectedNodes(), 1)
	assert.Equal(t, "PID: Patient Identification", resp.Tree.SelectedNodes()[0].Label)

	rec = do(t, srv, "POST", "/api/tree", map[string]any{"text": adt, "selection": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	resp.Tree = nil
	decode(t, rec, &resp)
	assert.Empty(t, resp.Tree.SelectedNodes())
}

func TestTree_BadSelection(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, "POST", "/api/tree", map[string]any{"text": adt, "selection": "1.x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDefinitions(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, "GET", "/api/definitions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var versions struct {
		Default  string   `json:"default"`
		Versions []string `json:"versions"`
	}
	decode(t, rec, &versions)
	assert.Equal(t, definition.DefaultVersion, versions.Default)
	assert.Contains(t, versions.Versions, "2.3")
	assert.Contains(t, versions.Versions, "2.5.1")

	rec = do(t, srv, "GET", "/api/definitions/2.3/pid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var seg struct {
		Segment    string `json:"segment"`
		Definition struct {
			Desc string `json:"desc"`
		} `json:"definition"`
	}
	decode(t, rec, &seg)
	assert.Equal(t, "PID", seg.Segment)
	assert.Equal(t, "Patient Identification", seg.Definition.Desc)

	rec = do(t, srv, "GET", "/api/definitions/2.3/PID/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var field struct {
		Field      string           `json:"field"`
		Definition definition.Field `json:"definition"`
	}
	decode(t, rec, &field)
	assert.Equal(t, "PID-3", field.Field)
	require.NotEmpty(t, field.Definition.Comp)
	assert.Equal(t, "ID Number", field.Definition.Comp[0].Desc)
}

func TestDefinitions_Misses(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/api/definitions/2.3/ZZZ", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/api/definitions/9.9/PID/3", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/api/definitions/2.3/PID/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "GET", "/api/definitions/2.3/PID/x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "GET", "/api/definitions/2.3/PID/0", nil).Code)
}

type sessionResp struct {
	ID        string            `json:"session_id"`
	Name      string            `json:"name"`
	Selection json.RawMessage   `json:"selection"`
	Target    map[string]any    `json:"target"`
	Desc      map[string]any    `json:"description"`
	Sections  []json.RawMessage `json:"sections"`
	Tree      *tree.Node        `json:"tree"`
}

func createSession(t *testing.T, srv *Server) sessionResp {
	t.Helper()
	rec := do(t, srv, "POST", "/api/sessions", map[string]string{"name": "adt", "text": adt})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp sessionResp
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.ID)
	return resp
}

func TestSessions_Lifecycle(t *testing.T) {
	srv := newTestServer(t)
	created := createSession(t, srv)
	assert.Equal(t, "adt", created.Name)
	assert.Equal(t, "null", string(created.Selection))
	assert.NotEmpty(t, created.Sections)

	base := "/api/sessions/" + created.ID

	rec := do(t, srv, "GET", base, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, "DELETE", base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, "GET", base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, srv, "DELETE", base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_Selection(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/sessions/" + createSession(t, srv).ID

	rec := do(t, srv, "PUT", base+"/selection", map[string]any{"path": "1.5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view sessionResp
	decode(t, rec, &view)
	assert.JSONEq(t, `{"segment":1,"field":5}`, string(view.Selection))
	assert.Equal(t, "Doe^John^Q", view.Target["value"])
	assert.Equal(t, "PID-5", view.Desc["fieldName"])

	rec = do(t, srv, "GET", base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = sessionResp{}
	decode(t, rec, &view)
	selected := view.Tree.SelectedNodes()
	require.Len(t, selected, 1)
	assert.Equal(t, "PID-5: Patient Name", selected[0].Label)

	rec = do(t, srv, "PUT", base+"/selection", map[string]any{"path": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	view = sessionResp{}
	decode(t, rec, &view)
	assert.Equal(t, "null", string(view.Selection))
	assert.Nil(t, view.Target)
}

func TestSessions_SelectionErrors(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/sessions/" + createSession(t, srv).ID

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "PUT", base+"/selection", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "PUT", base+"/selection", map[string]any{"path": "a.b"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "PUT", base+"/selection", map[string]any{"path": "-1"}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, "PUT", "/api/sessions/nope/selection", map[string]any{"path": "1"}).Code)
}

func TestSessions_ReplaceMessageClearsSelection(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/sessions/" + createSession(t, srv).ID

	require.Equal(t, http.StatusOK, do(t, srv, "PUT", base+"/selection", map[string]any{"path": "1.3"}).Code)

	rec := do(t, srv, "PUT", base+"/message", map[string]string{"text": oru})
	require.Equal(t, http.StatusOK, rec.Code)
	var view sessionResp
	decode(t, rec, &view)
	assert.Equal(t, "null", string(view.Selection))
	assert.Equal(t, "ORU", view.Tree.Label)
	assert.Empty(t, view.Tree.SelectedNodes())

	rec = do(t, srv, "GET", base+"/selection", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selection":null`)
}

func TestMessages_SaveAndList(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, "POST", "/api/messages", map[string]string{"name": "first", "text": adt})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, "POST", "/api/messages", map[string]string{"name": "first", "text": oru})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"saved":false`)

	rec = do(t, srv, "POST", "/api/messages", map[string]string{"name": " ", "text": adt})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, "GET", "/api/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Messages []store.Saved `json:"messages"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, adt, list.Messages[0].Text)
}

func upload(t *testing.T, srv *Server, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/messages/extract", &buf)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestExtract(t *testing.T) {
	srv := newTestServer(t)
	doc := strings.ReplaceAll(adt, "\r", "\n") + "\n\n" + strings.ReplaceAll(oru, "\r", "\n") + "\n"

	rec := upload(t, srv, "batch.hl7", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Filename string      `json:"filename"`
		Messages []candidate `json:"messages"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "batch.hl7", resp.Filename)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, adt, resp.Messages[0].Text)
	assert.Equal(t, "ADT^A01", resp.Messages[0].Type)
	assert.Equal(t, "2.3", resp.Messages[0].Version)
	assert.Equal(t, 2, resp.Messages[1].Segments)
}

func TestExtract_Unsupported(t *testing.T) {
	srv := newTestServer(t)
	rec := upload(t, srv, "run.exe", "MSH|")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type")
}

func TestParseStatsAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, "POST", "/api/parse", map[string]string{"text": adt})

	rec := do(t, srv, "GET", "/api/stats/parse", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Stats metrics.LatencySnapshot `json:"stats"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.Stats.Count)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hl7lens_parser_messages_total{outcome="ok"} 1`)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd": "passwd",
		"msg.hl7":          "msg.hl7",
		"":                 "unnamed",
		"a..b.txt":         "a_b.txt",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
