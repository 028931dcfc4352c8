package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagebot/internal/metadata"
	"github.com/triagebot/internal/orchestrator"
)

const testSecret = "s3cret"

type captureProcessor struct {
	mu     sync.Mutex
	events []orchestrator.Event
	done   chan struct{}
}

func newCaptureProcessor() *captureProcessor {
	return &captureProcessor{done: make(chan struct{}, 8)}
}

func (p *captureProcessor) Process(ctx context.Context, event orchestrator.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func (p *captureProcessor) wait(t *testing.T) orchestrator.Event {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event never dispatched")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type captureSyncer struct {
	done chan struct{}
}

func (s *captureSyncer) EnsureFresh(ctx context.Context) error {
	s.done <- struct{}{}
	return nil
}

func newTestServer(t *testing.T, processor EventProcessor, syncer Freshener, checkout string) *Server {
	t.Helper()
	if checkout == "" {
		checkout = t.TempDir()
	}
	return NewServer(0, processor, syncer, metadata.NewStore(checkout), testSecret, "example/repository")
}

func sign(body []byte) string {
	mac := hmac.New(sha1.New, []byte(testSecret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(s *Server, eventType string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-Hub-Signature", signature)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newCaptureProcessor(), &captureSyncer{}, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	processor := newCaptureProcessor()
	s := newTestServer(t, processor, &captureSyncer{}, "")

	body := []byte(`{"action":"opened"}`)
	rec := postWebhook(s, "issues", body, "sha1=deadbeef")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, processor.events)
}

func TestWebhookPing(t *testing.T) {
	s := newTestServer(t, newCaptureProcessor(), &captureSyncer{}, "")

	body := []byte(`{"zen":"Keep it logically awesome."}`)
	rec := postWebhook(s, "ping", body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PONG!", rec.Body.String())
}

func TestWebhookDispatchesIssueEvent(t *testing.T) {
	processor := newCaptureProcessor()
	s := newTestServer(t, processor, &captureSyncer{}, "")

	body := []byte(`{
		"action": "edited",
		"issue": {
			"number": 742,
			"body": "### body",
			"user": {"login": "alice"},
			"labels": [{"name": "out-of-date"}],
			"state": "closed",
			"closed_by": {"login": "triagebot"}
		}
	}`)
	rec := postWebhook(s, "issues", body, sign(body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "accepted")

	event := processor.wait(t)
	assert.Equal(t, 742, event.Issue.Number)
	assert.Equal(t, "### body", event.Issue.Body)
	assert.Equal(t, "alice", event.Issue.Author)
	assert.Equal(t, []string{"out-of-date"}, event.Issue.Labels)
	assert.True(t, event.Issue.Closed)
	assert.Equal(t, "triagebot", event.Issue.Closer)
	assert.True(t, event.Edited)
}

func TestWebhookIgnoresOtherIssueActions(t *testing.T) {
	processor := newCaptureProcessor()
	s := newTestServer(t, processor, &captureSyncer{}, "")

	body := []byte(`{"action":"labeled","issue":{"number":742}}`)
	rec := postWebhook(s, "issues", body, sign(body))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, processor.events)
}

func TestWebhookPushTriggersSync(t *testing.T) {
	syncer := &captureSyncer{done: make(chan struct{}, 1)}
	s := newTestServer(t, newCaptureProcessor(), syncer, "")

	body := []byte(`{"repository":{"full_name":"example/repository"}}`)
	rec := postWebhook(s, "push", body, sign(body))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sync never triggered")
	}

	// Pushes to unrelated repositories do nothing.
	body = []byte(`{"repository":{"full_name":"someone/else"}}`)
	postWebhook(s, "push", body, sign(body))
	select {
	case <-syncer.done:
		t.Fatal("sync triggered for foreign repository")
	case <-time.After(50 * time.Millisecond):
	}
}

func writeMaintainers(t *testing.T, checkout, pkgbase, doc string) {
	t.Helper()
	dir := filepath.Join(checkout, pkgbase)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadata.MetadataFile), []byte(doc), 0644))
}

type maintainersResponse struct {
	Result []maintainerResult `json:"result"`
}

func getMaintainers(t *testing.T, s *Server, query string) (*httptest.ResponseRecorder, maintainersResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/maintainers?q="+query, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	var resp maintainersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestMaintainersEndpoint(t *testing.T) {
	checkout := t.TempDir()
	writeMaintainers(t, checkout, "foo", "maintainers:\n  - identity: alice\n  - identity: bob\n")

	s := newTestServer(t, newCaptureProcessor(), &captureSyncer{}, checkout)

	rec, resp := getMaintainers(t, s, "foo,ghost")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	require.Len(t, resp.Result, 2)
	assert.Equal(t, "foo", resp.Result[0].Pkgbase)
	assert.Equal(t, []string{"alice", "bob"}, resp.Result[0].Maintainers)
	assert.Equal(t, "ghost", resp.Result[1].Pkgbase)
	assert.Equal(t, []string{}, resp.Result[1].Maintainers)
}

func TestMaintainersCaching(t *testing.T) {
	checkout := t.TempDir()
	writeMaintainers(t, checkout, "foo", "maintainers:\n  - identity: alice\n")

	s := newTestServer(t, newCaptureProcessor(), &captureSyncer{}, checkout)

	clock := time.Unix(1000, 0)
	s.maintainerCache.now = func() time.Time { return clock }

	_, resp := getMaintainers(t, s, "foo")
	assert.Equal(t, []string{"alice"}, resp.Result[0].Maintainers)

	// Within the TTL the changed file is not seen.
	writeMaintainers(t, checkout, "foo", "maintainers:\n  - identity: carol\n")
	clock = clock.Add(30 * time.Second)
	_, resp = getMaintainers(t, s, "foo")
	assert.Equal(t, []string{"alice"}, resp.Result[0].Maintainers)

	// After expiry the entry is re-read.
	clock = clock.Add(31 * time.Second)
	_, resp = getMaintainers(t, s, "foo")
	assert.Equal(t, []string{"carol"}, resp.Result[0].Maintainers)
}
