package api

import "net/http"

// ─── Activity API ───────────────────────────────────────────────────────────
//
// POST   /api/materials                upload a study material
// DELETE /api/materials/{id}           delete an own material
// POST   /api/materials/{id}/comments  comment on a material
// POST   /api/materials/{id}/ratings   rate 1–5
// POST   /api/materials/{id}/favorite  favorite a material
// DELETE /api/materials/{id}/favorite  remove a favorite
// POST   /api/posts                    community post
// GET    /api/posts/{id}/comments      comments on a post, oldest first
// POST   /api/posts/{id}/comments      comment on a post
// POST   /api/posts/{id}/like          like or unlike a post
// GET    /api/answers/{id}/comments    comments on a bounty answer
// POST   /api/answers/{id}/comments    comment on a bounty answer

type uploadRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	m, err := s.svc.Activity.Upload(r.Context(), caller(r).ID, req.Title, req.Category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid material id")
		return
	}

	if err := s.svc.Activity.DeleteMaterial(r.Context(), caller(r).ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "deleted",
		"id":     id,
	})
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid material id")
		return
	}
	var req contentRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	c, err := s.svc.Activity.Comment(r.Context(), caller(r).ID, id, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type rateRequest struct {
	Score int `json:"score"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid material id")
		return
	}
	var req rateRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	rating, err := s.svc.Activity.Rate(r.Context(), caller(r).ID, id, req.Score)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid material id")
		return
	}

	created, err := s.svc.Activity.Favorite(r.Context(), caller(r).ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"material_id": id,
		"favorited":   true,
		"created":     created,
	})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	p, err := s.svc.Activity.Post(r.Context(), caller(r).ID, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUnfavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid material id")
		return
	}

	removed, err := s.svc.Activity.Unfavorite(r.Context(), caller(r).ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"material_id": id,
		"favorited":   false,
		"removed":     removed,
	})
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid post id")
		return
	}
	var req contentRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	c, err := s.svc.Activity.CommentOnPost(r.Context(), caller(r).ID, id, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListPostComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid post id")
		return
	}

	comments, err := s.svc.Activity.PostComments(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": orEmpty(comments)})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid post id")
		return
	}

	state, err := s.svc.Activity.ToggleLike(r.Context(), caller(r).ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAnswerComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid answer id")
		return
	}
	var req contentRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	c, err := s.svc.Activity.CommentOnAnswer(r.Context(), caller(r).ID, id, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListAnswerComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid answer id")
		return
	}

	comments, err := s.svc.Activity.AnswerComments(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": orEmpty(comments)})
}
