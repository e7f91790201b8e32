package api

import (
	"net/http"

	"github.com/xueban-network/xueban/internal/domain"
)

// ─── Accounts API ───────────────────────────────────────────────────────────
//
// POST /api/accounts                register (role is always user)
// GET  /api/accounts/search?q=      fuzzy username search
// GET  /api/accounts/{id}           profile: XP, level, progress
// GET  /api/accounts/{id}/badges    badges with rarity
// GET  /api/accounts/{id}/ledger    XP history, newest first
// GET  /api/leaderboard?limit=      top accounts by XP
// GET  /api/badges                  every badge definition
// POST /api/admin/accounts/{id}/ban ban or unban (administrators)

type createAccountRequest struct {
	Username string `json:"username"`
}

// handleCreateAccount registers a user. Administrators are created from the
// CLI only.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	acct, err := s.svc.Accounts.Create(r.Context(), req.Username, domain.RoleUser)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid account id")
		return
	}

	profile, err := s.svc.Accounts.Profile(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleBadges evaluates the account's badge rules before listing, so a
// profile view always shows every badge earned so far.
func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid account id")
		return
	}

	held, err := s.svc.Badges.ForAccount(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"badges": orEmpty(held),
		"count":  len(held),
	})
}

func (s *Server) handleBadgeDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.svc.Badges.Definitions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": orEmpty(defs)})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid account id")
		return
	}

	entries, err := s.svc.Ledger.History(r.Context(), id, queryInt(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": orEmpty(entries),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.svc.Accounts.Search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": orEmpty(results),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.svc.Accounts.Leaderboard(r.Context(), queryInt(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leaderboard": orEmpty(board),
	})
}

type banRequest struct {
	Banned *bool `json:"banned"`
}

// handleBan bans an account, or lifts the ban with {"banned": false}.
func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid account id")
		return
	}
	var req banRequest
	if err := decodeOptional(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	banned := req.Banned == nil || *req.Banned

	if err := s.svc.Accounts.SetBanned(r.Context(), caller(r).ID, id, banned); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"banned":     banned,
	})
}
