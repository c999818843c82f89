package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/assistant"
	"github.com/fyrsmithlabs/knowledged/internal/extract"
	"github.com/fyrsmithlabs/knowledged/internal/ingest"
	"github.com/fyrsmithlabs/knowledged/internal/prompt"
)

type stubIngestor struct {
	lastText   string
	lastFile   ingest.FileSource
	lastURL    ingest.URLSource
	lastUserID string
	result     *ingest.Result
	err        error
}

func (s *stubIngestor) IngestText(_ context.Context, text, userID string) (*ingest.Result, error) {
	s.lastText, s.lastUserID = text, userID
	return s.result, s.err
}

func (s *stubIngestor) IngestFile(_ context.Context, src ingest.FileSource, userID string) (*ingest.Result, error) {
	s.lastFile, s.lastUserID = src, userID
	return s.result, s.err
}

func (s *stubIngestor) IngestURL(_ context.Context, src ingest.URLSource, userID string) (*ingest.Result, error) {
	s.lastURL, s.lastUserID = src, userID
	return s.result, s.err
}

type stubQuerier struct {
	lastQuestion string
	lastHistory  []prompt.Message
	lastUserID   string
	answer       *assistant.Answer
	err          error
}

func (s *stubQuerier) Query(_ context.Context, text string, history []prompt.Message, userID string) (*assistant.Answer, error) {
	s.lastQuestion, s.lastHistory, s.lastUserID = text, history, userID
	return s.answer, s.err
}

type stubFetcher struct {
	content *extract.URLContent
	err     error
}

func (s *stubFetcher) Extract(_ context.Context, _ string) (*extract.URLContent, error) {
	return s.content, s.err
}

func newTestServer(t *testing.T, ingestor *stubIngestor, querier *stubQuerier, fetcher *stubFetcher) *Server {
	t.Helper()
	if ingestor == nil {
		ingestor = &stubIngestor{result: &ingest.Result{ChunksCreated: 1}}
	}
	if querier == nil {
		querier = &stubQuerier{answer: &assistant.Answer{Answer: "ok", Sources: []assistant.Source{}}}
	}
	if fetcher == nil {
		fetcher = &stubFetcher{content: &extract.URLContent{
			URL:    "https://example.com/page",
			Title:  "Example",
			Domain: "example.com",
			Text:   "Example page body text long enough to ingest.",
		}}
	}
	srv, err := NewServer(ingestor, querier, fetcher, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv
}

func doJSON(srv *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echoHeaderContentType, "application/json")
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestNewServerRequiresDependencies(t *testing.T) {
	logger := zap.NewNop()
	ing := &stubIngestor{}
	q := &stubQuerier{}
	f := &stubFetcher{}

	_, err := NewServer(nil, q, f, logger, nil)
	assert.Error(t, err)
	_, err = NewServer(ing, nil, f, logger, nil)
	assert.Error(t, err)
	_, err = NewServer(ing, q, nil, logger, nil)
	assert.Error(t, err)
	_, err = NewServer(ing, q, f, nil, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	rec := doJSON(srv, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	rec := doJSON(srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTextIngestion(t *testing.T) {
	ing := &stubIngestor{result: &ingest.Result{DocumentsCreated: 1, ChunksCreated: 3, TotalWords: 42}}
	srv := newTestServer(t, ing, nil, nil)

	rec := doJSON(srv, http.MethodPost, "/api/v1/text", "user-1", TextRequest{Content: "Some knowledge base text."})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Some knowledge base text.", ing.lastText)
	assert.Equal(t, "user-1", ing.lastUserID)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "3 chunks")
	assert.Equal(t, 3, resp.Result.ChunksCreated)
}

func TestTextIngestionRequiresUserID(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	rec := doJSON(srv, http.MethodPost, "/api/v1/text", "", TextRequest{Content: "text"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTextIngestionValidationError(t *testing.T) {
	ing := &stubIngestor{err: fmt.Errorf("%w: text must be at least 10 characters long", ingest.ErrValidation)}
	srv := newTestServer(t, ing, nil, nil)

	rec := doJSON(srv, http.MethodPost, "/api/v1/text", "user-1", TextRequest{Content: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextIngestionInternalError(t *testing.T) {
	ing := &stubIngestor{err: errors.New("store unavailable")}
	srv := newTestServer(t, ing, nil, nil)

	rec := doJSON(srv, http.MethodPost, "/api/v1/text", "user-1", TextRequest{Content: "Some knowledge base text."})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal detail must not leak to the client.
	assert.NotContains(t, rec.Body.String(), "store unavailable")
}

func TestURLIngestion(t *testing.T) {
	ing := &stubIngestor{result: &ingest.Result{ChunksCreated: 2, Corrected: 2}}
	srv := newTestServer(t, ing, nil, nil)

	rec := doJSON(srv, http.MethodPost, "/api/v1/url", "user-1", URLRequest{URL: "https://example.com/page"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/page", ing.lastURL.URL)
	assert.Equal(t, "Example", ing.lastURL.Title)
	assert.Equal(t, "example.com", ing.lastURL.Domain)
}

func TestURLIngestionUnreachable(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("%w: HTTP 503", extract.ErrUnreachable)}
	srv := newTestServer(t, nil, nil, fetcher)

	rec := doJSON(srv, http.MethodPost, "/api/v1/url", "user-1", URLRequest{URL: "https://example.com/down"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestURLIngestionInvalidURL(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("%w: missing scheme", extract.ErrInvalidURL)}
	srv := newTestServer(t, nil, nil, fetcher)

	rec := doJSON(srv, http.MethodPost, "/api/v1/url", "user-1", URLRequest{URL: "not-a-url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartUpload(t *testing.T, fileName, mimeType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestFileIngestion(t *testing.T) {
	ing := &stubIngestor{result: &ingest.Result{ChunksCreated: 1, Corrected: 1}}
	srv := newTestServer(t, ing, nil, nil)

	body, contentType := multipartUpload(t, "notes.txt", "text/plain", "Meeting notes from the planning session.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/file", body)
	req.Header.Set(echoHeaderContentType, contentType)
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "notes.txt", ing.lastFile.FileName)
	assert.Equal(t, "text/plain", ing.lastFile.MimeType)
	assert.Equal(t, "Meeting notes from the planning session.", ing.lastFile.Text)
}

func TestFileIngestionUnsupportedType(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	body, contentType := multipartUpload(t, "app.bin", "application/octet-stream", strings.Repeat("x", 100))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/file", body)
	req.Header.Set(echoHeaderContentType, contentType)
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestFileIngestionMissingFile(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	rec := doJSON(srv, http.MethodPost, "/api/v1/file", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery(t *testing.T) {
	q := &stubQuerier{answer: &assistant.Answer{
		Answer: "Go is a programming language. [Source 1]",
		Sources: []assistant.Source{
			{ID: "u1_text_abc_0", Title: "Go is a language", Content: "Go is a programming language.", Type: "text", Similarity: 0.92},
		},
	}}
	srv := newTestServer(t, nil, q, nil)

	rec := doJSON(srv, http.MethodPost, "/api/v1/query", "user-1", QueryRequest{
		Question: "What is Go?",
		History: []prompt.Message{
			{Role: prompt.RoleUser, Content: "hi"},
			{Role: prompt.RoleAssistant, Content: "hello"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What is Go?", q.lastQuestion)
	assert.Equal(t, "user-1", q.lastUserID)
	assert.Len(t, q.lastHistory, 2)

	var answer assistant.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Contains(t, answer.Answer, "[Source 1]")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, 0.92, answer.Sources[0].Similarity)
}

func TestQueryMissingQuestion(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	rec := doJSON(srv, http.MethodPost, "/api/v1/query", "user-1", QueryRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryInternalError(t *testing.T) {
	q := &stubQuerier{err: errors.New("model timeout")}
	srv := newTestServer(t, nil, q, nil)

	rec := doJSON(srv, http.MethodPost, "/api/v1/query", "user-1", QueryRequest{Question: "What is Go?"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "model timeout")
}
