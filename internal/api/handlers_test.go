package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quillboard/quillboard/internal/domain"
	"github.com/quillboard/quillboard/internal/repository/postgres"
	"github.com/quillboard/quillboard/internal/service/spam"
	"github.com/quillboard/quillboard/internal/service/webhook"
)

// =============================================================================
// TEST FAKES
// =============================================================================

type fakeSpamRepo struct {
	rules  []domain.ModerationRule
	banned bool
}

func (f *fakeSpamRepo) ActiveRules(ctx context.Context, siteID string) ([]domain.ModerationRule, error) {
	return f.rules, nil
}

func (f *fakeSpamRepo) FindActiveBan(ctx context.Context, siteID, email, ip string, now time.Time) (bool, error) {
	return f.banned, nil
}

type fakeCommentStore struct {
	comments map[string]*domain.Comment
	reports  []*domain.Report
	nextID   int
}

func newFakeCommentStore() *fakeCommentStore {
	return &fakeCommentStore{comments: make(map[string]*domain.Comment)}
}

func (f *fakeCommentStore) Create(ctx context.Context, c *domain.Comment) error {
	f.nextID++
	c.ID = "c-" + strconv.Itoa(f.nextID)
	f.comments[c.ID] = c
	return nil
}

func (f *fakeCommentStore) Get(ctx context.Context, id string) (*domain.Comment, error) {
	c, ok := f.comments[id]
	if !ok {
		return nil, postgres.ErrCommentNotFound
	}
	return c, nil
}

func (f *fakeCommentStore) UpdateStatus(ctx context.Context, id string, status domain.CommentStatus, deletedBy string) error {
	c, ok := f.comments[id]
	if !ok {
		return postgres.ErrCommentNotFound
	}
	c.Status = status
	if deletedBy != "" {
		c.DeletedBy = deletedBy
	}
	return nil
}

func (f *fakeCommentStore) CreateReport(ctx context.Context, r *domain.Report) error {
	r.ID = "rep-1"
	f.reports = append(f.reports, r)
	return nil
}

// fakeEventRepo records created events. The dispatcher's attempt goroutines
// share it with the test, so access is locked.
type fakeEventRepo struct {
	mu        sync.Mutex
	endpoints map[string]domain.WebhookEndpoint
	events    map[string]*domain.WebhookEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		endpoints: make(map[string]domain.WebhookEndpoint),
		events:    make(map[string]*domain.WebhookEvent),
	}
}

func (f *fakeEventRepo) Endpoint(ctx context.Context, siteID string) (domain.WebhookEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.endpoints[siteID]
	if !ok {
		return domain.WebhookEndpoint{}, webhook.ErrNoEndpoint
	}
	return ep, nil
}

func (f *fakeEventRepo) CreateEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ev
	f.events[ev.ID] = &cp
	return nil
}

func (f *fakeEventRepo) GetEvent(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return nil, webhook.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeEventRepo) ClaimEvent(ctx context.Context, id string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok || ev.Status != domain.EventPending {
		return false, nil
	}
	return true, nil
}

func (f *fakeEventRepo) MarkDelivered(ctx context.Context, id string, attempt, respStatus int, respBody string, now time.Time) error {
	return nil
}

func (f *fakeEventRepo) MarkRetry(ctx context.Context, id string, attempt int, respStatus *int, respBody string, nextRetry, now time.Time) error {
	return nil
}

func (f *fakeEventRepo) MarkFailed(ctx context.Context, id string, attempt int, respStatus *int, respBody string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[id]; ok {
		ev.Status = domain.EventFailed
	}
	return nil
}

func (f *fakeEventRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) ListEvents(ctx context.Context, siteID string, limit, offset int) ([]domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WebhookEvent
	for _, ev := range f.events {
		if ev.SiteID == siteID {
			out = append(out, *ev)
		}
	}
	return out, nil
}

// hasEvent reports whether an event of the given type was recorded for a site.
func (f *fakeEventRepo) hasEvent(et domain.EventType, siteID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.EventType == et && ev.SiteID == siteID {
			return true
		}
	}
	return false
}

// count returns the number of recorded events.
func (f *fakeEventRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type testEnv struct {
	router   http.Handler
	store    *fakeCommentStore
	events   *fakeEventRepo
	spamRepo *fakeSpamRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	spamRepo := &fakeSpamRepo{}
	store := newFakeCommentStore()
	events := newFakeEventRepo()

	dispatcher := webhook.NewDispatcher(events)
	t.Cleanup(dispatcher.Close)

	h := NewHandlers(spam.NewService(spamRepo, 0), dispatcher, events, store)
	return &testEnv{
		router:   SetupRoutes(h, []string{"*"}),
		store:    store,
		events:   events,
		spamRepo: spamRepo,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:51234"
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCreateComment_CleanPublishes(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/comments", `{
		"site_id": "site-1", "thread_id": "t-1", "thread_identifier": "/post",
		"author_name": "Jane", "author_email": "jane@example.com",
		"content": "Really enjoyed this article, thanks for writing it."
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Comment domain.Comment `json:"comment"`
		Spam    spam.Result    `json:"spam"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Comment.Status != domain.StatusPublished {
		t.Errorf("status = %s, want published", resp.Comment.Status)
	}
	if resp.Spam.IsSpam {
		t.Errorf("spam = %+v", resp.Spam)
	}
	if resp.Comment.ID == "" {
		t.Error("comment not persisted")
	}

	stored := env.store.comments[resp.Comment.ID]
	if stored == nil {
		t.Fatal("comment missing from store")
	}
	if stored.AuthorIP != "203.0.113.9" {
		t.Errorf("author_ip = %q, want client IP without port", stored.AuthorIP)
	}

	// No webhook endpoint configured: nothing recorded.
	if env.events.count() != 0 {
		t.Errorf("%d webhook events recorded, want 0", env.events.count())
	}
}

func TestCreateComment_BannedAuthorGetsSpamStatus(t *testing.T) {
	env := newTestEnv(t)
	env.spamRepo.banned = true

	w := env.do(t, http.MethodPost, "/api/comments", `{
		"site_id": "site-1", "thread_id": "t-1",
		"author_name": "Bot", "author_email": "bot@spam.example",
		"content": "hello there"
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (submission still accepted)", w.Code)
	}

	var resp struct {
		Comment domain.Comment `json:"comment"`
		Spam    spam.Result    `json:"spam"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Comment.Status != domain.StatusSpam {
		t.Errorf("status = %s, want spam", resp.Comment.Status)
	}
	if !resp.Spam.IsBanned || resp.Spam.Score != 1.0 {
		t.Errorf("spam = %+v", resp.Spam)
	}
}

func TestCreateComment_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/comments", `{"site_id": "site-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateComment_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/comments", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateComment_FiresWebhookWhenConfigured(t *testing.T) {
	env := newTestEnv(t)
	// Unreachable endpoint: the event is recorded before any attempt runs.
	env.events.endpoints["site-1"] = domain.WebhookEndpoint{SiteID: "site-1", URL: "http://127.0.0.1:1"}

	w := env.do(t, http.MethodPost, "/api/comments", `{
		"site_id": "site-1", "thread_id": "t-1",
		"author_name": "Jane", "content": "Great write-up, learned a lot."
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	if !env.events.hasEvent(domain.EventCommentCreated, "site-1") {
		t.Error("no comment.created event recorded")
	}
}

func TestApproveComment(t *testing.T) {
	env := newTestEnv(t)
	c := &domain.Comment{SiteID: "site-1", AuthorName: "Jane", Content: "hi", Status: domain.StatusPending}
	env.store.Create(context.Background(), c)

	w := env.do(t, http.MethodPost, "/api/comments/"+c.ID+"/approve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if env.store.comments[c.ID].Status != domain.StatusPublished {
		t.Errorf("status = %s, want published", env.store.comments[c.ID].Status)
	}
}

func TestMarkSpam_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/comments/nope/spam", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteComment_RecordsDeleter(t *testing.T) {
	env := newTestEnv(t)
	c := &domain.Comment{SiteID: "site-1", AuthorName: "Jane", Content: "hi", Status: domain.StatusPublished}
	env.store.Create(context.Background(), c)

	w := env.do(t, http.MethodPost, "/api/comments/"+c.ID+"/delete", `{"deleted_by": "admin@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := env.store.comments[c.ID]
	if got.Status != domain.StatusDeleted || got.DeletedBy != "admin@example.com" {
		t.Errorf("comment = %+v", got)
	}
}

func TestCreateReport(t *testing.T) {
	env := newTestEnv(t)
	c := &domain.Comment{SiteID: "site-1", AuthorName: "Jane", Content: "hi", Status: domain.StatusPublished}
	env.store.Create(context.Background(), c)

	w := env.do(t, http.MethodPost, "/api/reports", `{"comment_id": "`+c.ID+`", "reason": "abusive"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(env.store.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(env.store.reports))
	}
	rep := env.store.reports[0]
	if rep.SiteID != "site-1" || rep.CommentID != c.ID || rep.Reason != "abusive" {
		t.Errorf("report = %+v", rep)
	}
}

func TestCreateReport_UnknownComment(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/reports", `{"comment_id": "nope", "reason": "spam"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListWebhookEvents(t *testing.T) {
	env := newTestEnv(t)
	env.events.events["ev-1"] = &domain.WebhookEvent{ID: "ev-1", SiteID: "site-1", Status: domain.EventDelivered}
	env.events.events["ev-2"] = &domain.WebhookEvent{ID: "ev-2", SiteID: "other", Status: domain.EventPending}

	w := env.do(t, http.MethodGet, "/api/webhook-events?site_id=site-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Events []domain.WebhookEvent `json:"events"`
		Count  int                   `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Count != 1 || len(resp.Events) != 1 || resp.Events[0].ID != "ev-1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestListWebhookEvents_RequiresSiteID(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/webhook-events", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRedeliverWebhookEvent_TerminalConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.events.events["ev-1"] = &domain.WebhookEvent{ID: "ev-1", SiteID: "site-1", Status: domain.EventDelivered}

	w := env.do(t, http.MethodPost, "/api/webhook-events/ev-1/redeliver", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"limit=10&offset=20", 10, 20},
		{"limit=9999", 50, 0},
		{"limit=-1&offset=-5", 50, 0},
		{"limit=abc", 50, 0},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/webhook-events?"+tt.query, nil)
		limit, offset := pagination(req)
		if limit != tt.wantLimit || offset != tt.wantOffset {
			t.Errorf("pagination(%q) = %d/%d, want %d/%d", tt.query, limit, offset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP = %q", got)
	}
	req.RemoteAddr = "203.0.113.9"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP = %q", got)
	}
}
