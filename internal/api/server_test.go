package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xueban-network/xueban/internal/app/accounts"
	"github.com/xueban-network/xueban/internal/app/activity"
	"github.com/xueban-network/xueban/internal/app/badges"
	"github.com/xueban-network/xueban/internal/app/escrow"
	"github.com/xueban-network/xueban/internal/app/ledger"
	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database"
	"github.com/xueban-network/xueban/internal/infra/ratelimit"
)

// ─── API Tests ──────────────────────────────────────────────────────────────

type testAPI struct {
	handler http.Handler
	db      *database.DB
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "api.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	rewards := domain.DefaultRewardSchedule()
	l := ledger.New(db, logger)
	b, err := badges.New(db, badges.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("badges: %v", err)
	}

	srv := NewServer(Services{
		Accounts: accounts.New(db, logger),
		Ledger:   l,
		Badges:   b,
		Escrow:   escrow.New(db, l, rewards, logger),
		Activity: activity.New(db, l, rewards, logger,
			activity.WithRateLimiter(ratelimit.NewMemory(), time.Minute)),
	}, logger)
	srv.EnableMetrics()
	return &testAPI{handler: srv.Handler(), db: db}
}

// do sends a request as accountID (0 means anonymous) and decodes the JSON
// response into a map.
func (a *testAPI) do(t *testing.T, method, path string, accountID int64, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if accountID != 0 {
		req.Header.Set(AccountHeader, fmt.Sprint(accountID))
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	var resp map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, resp
}

func (a *testAPI) register(t *testing.T, name string) int64 {
	t.Helper()
	code, resp := a.do(t, http.MethodPost, "/api/accounts", 0, fmt.Sprintf(`{"username":%q}`, name))
	if code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %v", name, code, resp)
	}
	return int64(resp["id"].(float64))
}

func (a *testAPI) xp(t *testing.T, id int64) int64 {
	t.Helper()
	code, resp := a.do(t, http.MethodGet, fmt.Sprintf("/api/accounts/%d", id), 0, "")
	if code != http.StatusOK {
		t.Fatalf("profile %d: status %d", id, code)
	}
	return int64(resp["xp"].(float64))
}

func errorType(resp map[string]any) string {
	e, _ := resp["error"].(map[string]any)
	s, _ := e["type"].(string)
	return s
}

func TestHealth(t *testing.T) {
	api := setupAPI(t)
	code, resp := api.do(t, http.MethodGet, "/health", 0, "")
	if code != http.StatusOK || resp["status"] != "ok" {
		t.Errorf("health = %d %v", code, resp)
	}
}

func TestCreateAccount(t *testing.T) {
	api := setupAPI(t)

	code, resp := api.do(t, http.MethodPost, "/api/accounts", 0, `{"username":"alice"}`)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if resp["level"] != float64(1) || resp["xp"] != float64(0) {
		t.Errorf("new account = %v, want level 1 and xp 0", resp)
	}
	if resp["role"] != "user" {
		t.Errorf("role = %v, want user", resp["role"])
	}

	code, resp = api.do(t, http.MethodPost, "/api/accounts", 0, `{"username":"alice"}`)
	if code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", code)
	}
	if errorType(resp) != "conflict" {
		t.Errorf("error type = %q, want conflict", errorType(resp))
	}

	code, _ = api.do(t, http.MethodPost, "/api/accounts", 0, `{"username":"al"}`)
	if code != http.StatusBadRequest {
		t.Errorf("short username: expected 400, got %d", code)
	}

	code, _ = api.do(t, http.MethodPost, "/api/accounts", 0, `{not json`)
	if code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", code)
	}
}

func TestProfile(t *testing.T) {
	api := setupAPI(t)
	id := api.register(t, "alice")

	code, resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/accounts/%d", id), 0, "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	progress, ok := resp["progress"].(map[string]any)
	if !ok {
		t.Fatalf("missing progress in %v", resp)
	}
	if progress["xp_to_next"] != float64(100) {
		t.Errorf("xp_to_next = %v, want 100", progress["xp_to_next"])
	}

	code, resp = api.do(t, http.MethodGet, "/api/accounts/999", 0, "")
	if code != http.StatusNotFound || errorType(resp) != "not_found" {
		t.Errorf("unknown account = %d %v", code, resp)
	}

	code, _ = api.do(t, http.MethodGet, "/api/accounts/abc", 0, "")
	if code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", code)
	}
}

func TestAuthentication(t *testing.T) {
	api := setupAPI(t)

	code, resp := api.do(t, http.MethodPost, "/api/materials", 0, `{"title":"notes"}`)
	if code != http.StatusUnauthorized || errorType(resp) != "unauthorized" {
		t.Errorf("anonymous = %d %v", code, resp)
	}

	code, _ = api.do(t, http.MethodPost, "/api/materials", 42, `{"title":"notes"}`)
	if code != http.StatusUnauthorized {
		t.Errorf("unknown account: expected 401, got %d", code)
	}
}

func TestBountyLifecycle(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	bob := api.register(t, "bob")

	for range 2 {
		code, _ := api.do(t, http.MethodPost, "/api/materials", alice, `{"title":"notes","category":"math"}`)
		if code != http.StatusCreated {
			t.Fatalf("upload: expected 201, got %d", code)
		}
	}
	if got := api.xp(t, alice); got != 100 {
		t.Fatalf("alice xp = %d, want 100", got)
	}

	code, resp := api.do(t, http.MethodPost, "/api/bounties", alice, `{"title":"Help","reward":500}`)
	if code != http.StatusConflict {
		t.Errorf("overstake: expected 409, got %d (%v)", code, resp)
	}

	code, resp = api.do(t, http.MethodPost, "/api/bounties", alice, `{"title":"Help","description":"pls","reward":80}`)
	if code != http.StatusCreated {
		t.Fatalf("create bounty: expected 201, got %d (%v)", code, resp)
	}
	bountyID := int64(resp["id"].(float64))
	if resp["status"] != "open" {
		t.Errorf("status = %v, want open", resp["status"])
	}

	code, resp = api.do(t, http.MethodPost, fmt.Sprintf("/api/bounties/%d/answers", bountyID), bob, `{"content":"here"}`)
	if code != http.StatusCreated {
		t.Fatalf("answer: expected 201, got %d", code)
	}
	answerID := int64(resp["id"].(float64))

	code, _ = api.do(t, http.MethodPost, fmt.Sprintf("/api/bounties/%d/accept/%d", bountyID, answerID), bob, "")
	if code != http.StatusForbidden {
		t.Errorf("accept by non-poster: expected 403, got %d", code)
	}

	code, resp = api.do(t, http.MethodPost, fmt.Sprintf("/api/bounties/%d/accept/%d", bountyID, answerID), alice, "")
	if code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d (%v)", code, resp)
	}
	if resp["status"] != "solved" || resp["solver_id"] != float64(bob) {
		t.Errorf("accepted bounty = %v", resp)
	}

	code, _ = api.do(t, http.MethodPost, fmt.Sprintf("/api/bounties/%d/accept/%d", bountyID, answerID), alice, "")
	if code != http.StatusConflict {
		t.Errorf("second accept: expected 409, got %d", code)
	}
	code, _ = api.do(t, http.MethodDelete, fmt.Sprintf("/api/bounties/%d", bountyID), alice, "")
	if code != http.StatusConflict {
		t.Errorf("cancel solved: expected 409, got %d", code)
	}

	if got := api.xp(t, alice); got != 20 {
		t.Errorf("alice xp = %d, want 20", got)
	}
	if got := api.xp(t, bob); got != 82 {
		t.Errorf("bob xp = %d, want 82", got)
	}

	code, resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/bounties/%d", bountyID), 0, "")
	if code != http.StatusOK {
		t.Fatalf("get bounty: expected 200, got %d", code)
	}
	answers, _ := resp["answers"].([]any)
	if len(answers) != 1 {
		t.Errorf("answers = %v, want 1", resp["answers"])
	}
}

func TestCancelBounty(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	api.do(t, http.MethodPost, "/api/materials", alice, `{"title":"notes"}`)

	_, resp := api.do(t, http.MethodPost, "/api/bounties", alice, `{"title":"Help","reward":30}`)
	bountyID := int64(resp["id"].(float64))
	if got := api.xp(t, alice); got != 20 {
		t.Fatalf("after stake xp = %d, want 20", got)
	}

	code, _ := api.do(t, http.MethodDelete, fmt.Sprintf("/api/bounties/%d", bountyID), alice, "")
	if code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", code)
	}
	if got := api.xp(t, alice); got != 50 {
		t.Errorf("after refund xp = %d, want 50", got)
	}

	code, _ = api.do(t, http.MethodGet, fmt.Sprintf("/api/bounties/%d", bountyID), 0, "")
	if code != http.StatusNotFound {
		t.Errorf("cancelled bounty: expected 404, got %d", code)
	}
}

func TestListBounties(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	api.do(t, http.MethodPost, "/api/materials", alice, `{"title":"notes"}`)
	api.do(t, http.MethodPost, "/api/bounties", alice, `{"title":"one","reward":10}`)
	api.do(t, http.MethodPost, "/api/bounties", alice, `{"title":"two","reward":10}`)

	code, resp := api.do(t, http.MethodGet, "/api/bounties?status=open", 0, "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if list, _ := resp["bounties"].([]any); len(list) != 2 {
		t.Errorf("bounties = %v, want 2", resp["bounties"])
	}

	code, resp = api.do(t, http.MethodGet, "/api/bounties?status=solved", 0, "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if list, ok := resp["bounties"].([]any); !ok || len(list) != 0 {
		t.Errorf("solved bounties = %v, want empty list", resp["bounties"])
	}

	code, _ = api.do(t, http.MethodGet, "/api/bounties?status=bogus", 0, "")
	if code != http.StatusBadRequest {
		t.Errorf("bad status: expected 400, got %d", code)
	}
}

func TestMaterialActivity(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	bob := api.register(t, "bob")

	_, resp := api.do(t, http.MethodPost, "/api/materials", alice, `{"title":"notes"}`)
	mid := int64(resp["id"].(float64))

	code, _ := api.do(t, http.MethodPost, fmt.Sprintf("/api/materials/%d/comments", mid), bob, `{"content":"thanks"}`)
	if code != http.StatusCreated {
		t.Errorf("comment: expected 201, got %d", code)
	}
	code, resp = api.do(t, http.MethodPost, fmt.Sprintf("/api/materials/%d/ratings", mid), bob, `{"score":5}`)
	if code != http.StatusOK || resp["first"] != true {
		t.Errorf("rate = %d %v", code, resp)
	}
	code, _ = api.do(t, http.MethodPost, fmt.Sprintf("/api/materials/%d/ratings", mid), bob, `{"score":9}`)
	if code != http.StatusBadRequest {
		t.Errorf("bad score: expected 400, got %d", code)
	}
	code, resp = api.do(t, http.MethodPost, fmt.Sprintf("/api/materials/%d/favorite", mid), bob, "")
	if code != http.StatusOK || resp["created"] != true {
		t.Errorf("favorite = %d %v", code, resp)
	}
	if got := api.xp(t, bob); got != 15 {
		t.Errorf("bob xp = %d, want 15", got)
	}

	code, _ = api.do(t, http.MethodDelete, fmt.Sprintf("/api/materials/%d", mid), bob, "")
	if code != http.StatusForbidden {
		t.Errorf("delete by other: expected 403, got %d", code)
	}
	code, _ = api.do(t, http.MethodDelete, fmt.Sprintf("/api/materials/%d", mid), alice, "")
	if code != http.StatusOK {
		t.Errorf("delete by owner: expected 200, got %d", code)
	}
}

func TestPostRateLimit(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")

	code, _ := api.do(t, http.MethodPost, "/api/posts", alice, `{"content":"hello"}`)
	if code != http.StatusCreated {
		t.Fatalf("first post: expected 201, got %d", code)
	}
	code, resp := api.do(t, http.MethodPost, "/api/posts", alice, `{"content":"again"}`)
	if code != http.StatusTooManyRequests || errorType(resp) != "rate_limited" {
		t.Errorf("second post = %d %v", code, resp)
	}
}

func TestCommunityThreads(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	bob := api.register(t, "bob")

	_, resp := api.do(t, http.MethodPost, "/api/posts", alice, `{"content":"study group?"}`)
	pid := int64(resp["id"].(float64))
	comments := fmt.Sprintf("/api/posts/%d/comments", pid)

	code, resp := api.do(t, http.MethodPost, comments, bob, `{"content":"count me in"}`)
	if code != http.StatusCreated || resp["post_id"] != float64(pid) {
		t.Fatalf("comment = %d %v", code, resp)
	}
	code, resp = api.do(t, http.MethodPost, comments, bob, `{"content":"me too"}`)
	if code != http.StatusTooManyRequests || errorType(resp) != "rate_limited" {
		t.Errorf("second comment = %d %v", code, resp)
	}
	code, _ = api.do(t, http.MethodPost, "/api/posts/999/comments", alice, `{"content":"hi"}`)
	if code != http.StatusNotFound {
		t.Errorf("comment on missing post: expected 404, got %d", code)
	}
	if got := api.xp(t, bob); got != 5 {
		t.Errorf("bob xp = %d, want 5", got)
	}

	code, resp = api.do(t, http.MethodGet, comments, 0, "")
	if list, _ := resp["comments"].([]any); code != http.StatusOK || len(list) != 1 {
		t.Errorf("list comments = %d %v", code, resp)
	}

	like := fmt.Sprintf("/api/posts/%d/like", pid)
	code, resp = api.do(t, http.MethodPost, like, bob, "")
	if code != http.StatusOK || resp["liked"] != true || resp["likes"] != float64(1) {
		t.Errorf("like = %d %v", code, resp)
	}
	code, resp = api.do(t, http.MethodPost, like, bob, "")
	if code != http.StatusOK || resp["liked"] != false || resp["likes"] != float64(0) {
		t.Errorf("unlike = %d %v", code, resp)
	}
}

func TestUnfavorite(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	bob := api.register(t, "bob")

	_, resp := api.do(t, http.MethodPost, "/api/materials", alice, `{"title":"notes"}`)
	path := fmt.Sprintf("/api/materials/%d/favorite", int64(resp["id"].(float64)))
	api.do(t, http.MethodPost, path, bob, "")

	code, resp := api.do(t, http.MethodDelete, path, bob, "")
	if code != http.StatusOK || resp["removed"] != true {
		t.Errorf("unfavorite = %d %v", code, resp)
	}
	code, resp = api.do(t, http.MethodDelete, path, bob, "")
	if code != http.StatusOK || resp["removed"] != false {
		t.Errorf("second unfavorite = %d %v", code, resp)
	}
}

func TestAnswerComments(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	bob := api.register(t, "bob")
	api.do(t, http.MethodPost, "/api/materials", alice, `{"title":"notes"}`)

	_, resp := api.do(t, http.MethodPost, "/api/bounties", alice, `{"title":"Help","reward":10}`)
	bid := int64(resp["id"].(float64))
	_, resp = api.do(t, http.MethodPost, fmt.Sprintf("/api/bounties/%d/answers", bid), bob, `{"content":"use a map"}`)
	path := fmt.Sprintf("/api/answers/%d/comments", int64(resp["id"].(float64)))

	code, _ := api.do(t, http.MethodPost, path, 0, `{"content":"why?"}`)
	if code != http.StatusUnauthorized {
		t.Errorf("anonymous comment: expected 401, got %d", code)
	}
	code, resp = api.do(t, http.MethodPost, path, alice, `{"content":"why a map?"}`)
	if code != http.StatusCreated {
		t.Fatalf("answer comment = %d %v", code, resp)
	}
	code, resp = api.do(t, http.MethodGet, path, 0, "")
	if list, _ := resp["comments"].([]any); code != http.StatusOK || len(list) != 1 {
		t.Errorf("list answer comments = %d %v", code, resp)
	}
	code, _ = api.do(t, http.MethodGet, "/api/answers/999/comments", 0, "")
	if code != http.StatusNotFound {
		t.Errorf("missing answer: expected 404, got %d", code)
	}
}

func TestBadgeDefinitions(t *testing.T) {
	api := setupAPI(t)
	code, resp := api.do(t, http.MethodGet, "/api/badges", 0, "")
	list, _ := resp["badges"].([]any)
	if code != http.StatusOK || len(list) != len(domain.DefaultBadges()) {
		t.Errorf("badges = %d %v", code, resp)
	}
}

func TestBan(t *testing.T) {
	api := setupAPI(t)
	admin, err := api.db.CreateAccount(context.Background(), "admin", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	troll := api.register(t, "troll")
	path := fmt.Sprintf("/api/admin/accounts/%d/ban", troll)

	code, _ := api.do(t, http.MethodPost, path, troll, "")
	if code != http.StatusForbidden {
		t.Errorf("self ban by user: expected 403, got %d", code)
	}

	code, resp := api.do(t, http.MethodPost, path, admin.ID, "")
	if code != http.StatusOK || resp["banned"] != true {
		t.Fatalf("ban = %d %v", code, resp)
	}

	code, _ = api.do(t, http.MethodPost, "/api/materials", troll, `{"title":"spam"}`)
	if code != http.StatusForbidden {
		t.Errorf("banned upload: expected 403, got %d", code)
	}

	code, resp = api.do(t, http.MethodPost, path, admin.ID, `{"banned":false}`)
	if code != http.StatusOK || resp["banned"] != false {
		t.Errorf("unban = %d %v", code, resp)
	}
}

func TestBadgesAndLedger(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	api.do(t, http.MethodPost, "/api/materials", alice, `{"title":"notes"}`)

	code, resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/accounts/%d/badges", alice), 0, "")
	if code != http.StatusOK {
		t.Fatalf("badges: expected 200, got %d", code)
	}
	held, _ := resp["badges"].([]any)
	codes := map[string]bool{}
	for _, b := range held {
		codes[b.(map[string]any)["code"].(string)] = true
	}
	if !codes[domain.BadgeFirstUpload] || !codes[domain.BadgePioneer] {
		t.Errorf("badges = %v, want first_upload and pioneer", codes)
	}

	code, resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/accounts/%d/ledger", alice), 0, "")
	if code != http.StatusOK {
		t.Fatalf("ledger: expected 200, got %d", code)
	}
	entries, _ := resp["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("entries = %v, want 1", resp["entries"])
	}
	e := entries[0].(map[string]any)
	if e["amount"] != float64(50) || e["reason"] != "upload" {
		t.Errorf("entry = %v", e)
	}
}

func TestLeaderboardAndSearch(t *testing.T) {
	api := setupAPI(t)
	alice := api.register(t, "alice")
	api.register(t, "bob")
	api.do(t, http.MethodPost, "/api/materials", alice, `{"title":"notes"}`)

	code, resp := api.do(t, http.MethodGet, "/api/leaderboard?limit=1", 0, "")
	if code != http.StatusOK {
		t.Fatalf("leaderboard: expected 200, got %d", code)
	}
	board, _ := resp["leaderboard"].([]any)
	if len(board) != 1 || board[0].(map[string]any)["username"] != "alice" {
		t.Errorf("leaderboard = %v", board)
	}

	code, resp = api.do(t, http.MethodGet, "/api/accounts/search?q=BO", 0, "")
	if code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", code)
	}
	results, _ := resp["results"].([]any)
	if len(results) != 1 || results[0].(map[string]any)["username"] != "bob" {
		t.Errorf("search = %v", results)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api := setupAPI(t)
	api.do(t, http.MethodGet, "/health", 0, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "xueban_http_requests_total") {
		t.Error("metrics output missing xueban_http_requests_total")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrBountyNotFound), http.StatusNotFound},
		{domain.ErrNotBountyPoster, http.StatusForbidden},
		{domain.ErrAccountBanned, http.StatusForbidden},
		{domain.ErrInsufficientBalance, http.StatusConflict},
		{domain.ErrBountyNotOpen, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrDuplicateComment, http.StatusBadRequest},
		{domain.ErrPostNotFound, http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
