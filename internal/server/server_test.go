package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/metrics"
	"document-qa/internal/models"
	"document-qa/internal/rag"
	"document-qa/internal/session"
	pdffixture "document-qa/internal/testutil"
)

type cannedGenerator struct {
	reply string
}

func (g cannedGenerator) Generate(context.Context, string) (string, error) {
	return g.reply, nil
}

func newTestServer(maxUploadMB int) *Server {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	p := rag.NewPipeline(rag.NewComposer(cannedGenerator{reply: "Marketing doubled."}), models.DefaultTopK, rag.WithMetrics(m))
	factory := func() *session.Session {
		return session.New(config.RAGConfig{}, embedding.NewHashEmbedder(128), p, m)
	}
	return New(factory, m, reg, maxUploadMB)
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newTestServer(4))
	t.Cleanup(ts.Close)
	return ts
}

func upload(t *testing.T, ts *httptest.Server, filename string, raw []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(raw); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	resp, err := http.Post(ts.URL+"/sessions", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /sessions: %v", err)
	}
	return resp
}

func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	raw := pdffixture.BuildPDF([]string{
		"The annual budget for headquarters is 40k.",
		"",
		"The marketing budget doubled this year.",
		"",
		"The travel budget was cut to 5k.",
	})

	resp := upload(t, ts, "plan.pdf", raw)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created createResponse
	decode(t, resp, &created)
	if created.ID == "" || created.Filename != "plan.pdf" || created.Pages != 5 {
		t.Fatalf("unexpected create response %+v", created)
	}
	base := ts.URL + "/sessions/" + created.ID

	resp = doJSON(t, http.MethodPut, base+"/range", rangeRequest{Start: 3, End: 5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from range, got %d", resp.StatusCode)
	}
	var info session.Info
	decode(t, resp, &info)
	if info.Range != (models.PageRange{Start: 2, End: 4}) || info.FullRange {
		t.Fatalf("unexpected range info %+v", info)
	}

	resp = doJSON(t, http.MethodPost, base+"/answer", answerRequest{Query: "what is the budget?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from answer, got %d", resp.StatusCode)
	}
	var ans answerResponse
	decode(t, resp, &ans)
	if len(ans.CitedPages) != 2 || ans.CitedPages[0] != 3 || ans.CitedPages[1] != 5 {
		t.Fatalf("expected cited pages [3 5], got %v", ans.CitedPages)
	}
	if ans.Message != "Marketing doubled.\n\nSources: Page 3, 5" {
		t.Fatalf("unexpected message %q", ans.Message)
	}

	resp = doJSON(t, http.MethodGet, base+"/history", nil)
	var history []models.ChatTurn
	decode(t, resp, &history)
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}

	resp = doJSON(t, http.MethodDelete, base+"/history", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 from clear history, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, base+"/history", nil)
	decode(t, resp, &history)
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(history))
	}

	resp = doJSON(t, http.MethodDelete, base, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 from delete, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, base, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateRejectsUnreadableDocuments(t *testing.T) {
	ts := setupTestServer(t)

	resp := upload(t, ts, "junk.pdf", []byte("not a pdf"))
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(body["error"], "no extractable text") {
		t.Fatalf("expected 422 empty corpus for unreadable file, got %d %v", resp.StatusCode, body)
	}

	resp = upload(t, ts, "blank.pdf", pdffixture.BuildPDF([]string{""}))
	body = nil
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(body["error"], "no extractable text") {
		t.Fatalf("expected 422 empty corpus, got %d %v", resp.StatusCode, body)
	}
}

func TestCreateRejectsOversizedUpload(t *testing.T) {
	srv := newTestServer(1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "huge.txt")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(bytes.Repeat([]byte("budget "), 300_000)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized upload, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "upload exceeds") {
		t.Fatalf("unexpected error body %s", rec.Body.String())
	}
}

func TestAnswerValidation(t *testing.T) {
	ts := setupTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/missing/answer", answerRequest{Query: "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	resp = upload(t, ts, "notes.txt", []byte("Budget is 10k.\fTravel is 2k."))
	var created createResponse
	decode(t, resp, &created)
	base := ts.URL + "/sessions/" + created.ID

	resp = doJSON(t, http.MethodPost, base+"/answer", answerRequest{Query: "  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, base+"/range", rangeRequest{Start: 2, End: 9})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad range, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, base+"/welcome", welcomeRequest{Name: "Ada"})
	var welcome map[string]string
	decode(t, resp, &welcome)
	if !strings.HasPrefix(welcome["message"], "Hello Ada!") {
		t.Fatalf("unexpected welcome %v", welcome)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := setupTestServer(t)
	resp := upload(t, ts, "notes.txt", []byte("Budget is 10k."))
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, name := range []string{"docqa_ingests_total", "docqa_active_sessions 1"} {
		if !strings.Contains(buf.String(), name) {
			t.Fatalf("metrics output missing %q", name)
		}
	}
}
