package api

import (
	"net/http"

	"github.com/xueban-network/xueban/internal/app/escrow"
	"github.com/xueban-network/xueban/internal/domain"
)

// ─── Bounty API ─────────────────────────────────────────────────────────────
//
// GET    /api/bounties?status=&limit=         list, open first
// GET    /api/bounties/{id}                   bounty with answers
// POST   /api/bounties                        create and escrow the reward
// POST   /api/bounties/{id}/answers           answer an open bounty
// POST   /api/bounties/{id}/accept/{answerID} pay the reward to an answer
// DELETE /api/bounties/{id}                   cancel and refund

func (s *Server) handleListBounties(w http.ResponseWriter, r *http.Request) {
	status := domain.BountyStatus(r.URL.Query().Get("status"))
	if status != "" && status != domain.BountyOpen && status != domain.BountySolved {
		badRequest(w, "status must be open or solved")
		return
	}

	list, err := s.svc.Escrow.List(r.Context(), status, queryInt(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bounties": orEmpty(list),
	})
}

func (s *Server) handleGetBounty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid bounty id")
		return
	}

	detail, err := s.svc.Escrow.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	detail.Answers = orEmpty(detail.Answers)
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCreateBounty(w http.ResponseWriter, r *http.Request) {
	var in escrow.CreateInput
	if err := decode(r, &in); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	in.PosterID = caller(r).ID

	bounty, err := s.svc.Escrow.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bounty)
}

type contentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid bounty id")
		return
	}
	var req contentRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	answer, err := s.svc.Escrow.Answer(r.Context(), id, caller(r).ID, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, answer)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid bounty id")
		return
	}
	answerID, ok := pathID(r, "answerID")
	if !ok {
		badRequest(w, "invalid answer id")
		return
	}

	bounty, err := s.svc.Escrow.Accept(r.Context(), id, answerID, caller(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bounty)
}

func (s *Server) handleCancelBounty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid bounty id")
		return
	}

	if err := s.svc.Escrow.Cancel(r.Context(), id, caller(r).ID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "cancelled",
		"id":     id,
	})
}
