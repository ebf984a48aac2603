package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
)

type capturingDispatcher struct {
	updates []*bot.Update
}

func (c *capturingDispatcher) Dispatch(ctx context.Context, upd *bot.Update) {
	c.updates = append(c.updates, upd)
}

type fixedHealth struct {
	snap time.Time
	poll time.Time
}

func (f fixedHealth) SnapshotGeneratedAt() time.Time { return f.snap }
func (f fixedHealth) LastPollAt() time.Time          { return f.poll }

func newTestServer(h Health) (*Server, *capturingDispatcher) {
	d := &capturingDispatcher{}
	s := New(":0", d, h, logger.New(logger.ParseLogLevel("error")), metrics.NewCollector())
	return s, d
}

func TestWebhookDispatchesMessageUpdate(t *testing.T) {
	s, d := newTestServer(fixedHealth{snap: time.Now()})

	body := `{"update_id":1,"message":{"message_id":5,"from":{"id":42},"chat":{"id":42},"text":"/start"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(d.updates) != 1 || d.updates[0].UserID() != 42 {
		t.Fatalf("update not dispatched: %+v", d.updates)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("request id header missing")
	}
}

func TestWebhookDispatchesCallbackUpdate(t *testing.T) {
	s, d := newTestServer(fixedHealth{snap: time.Now()})

	body := `{"update_id":2,"callback_query":{"id":"cb1","from":{"id":42},"data":"menu:home","message":{"message_id":9,"chat":{"id":42}}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(d.updates) != 1 || d.updates[0].CallbackQuery.Data != "menu:home" {
		t.Fatalf("callback not dispatched: %+v", d.updates)
	}
}

func TestWebhookRejectsGarbage(t *testing.T) {
	s, d := newTestServer(fixedHealth{snap: time.Now()})

	for _, body := range []string{"not json", `{"update_id":3}`} {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
	if len(d.updates) != 0 {
		t.Error("nothing should be dispatched")
	}
}

func TestHealthzReportsFreshness(t *testing.T) {
	now := time.Now()
	s, _ := newTestServer(fixedHealth{snap: now, poll: now})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestHealthzDegradedWithoutSnapshot(t *testing.T) {
	s, _ := newTestServer(fixedHealth{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(fixedHealth{snap: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ogetbot_") {
		t.Error("metrics output must carry the application namespace")
	}
}
