package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/agency-backoffice/internal/db"
)

// formBool accepts the usual checkbox spellings.
func formBool(c *gin.Context, field string) bool {
	switch strings.ToLower(strings.TrimSpace(c.PostForm(field))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func formUint(c *gin.Context, field string) (uint64, bool) {
	v, err := strconv.ParseUint(c.PostForm(field), 10, 64)
	return v, err == nil && v > 0
}

func paginationToken(c *gin.Context) *string {
	if t := c.Query("pagination_token"); t != "" {
		return &t
	}
	return nil
}

func propositionView(p db.Proposition, now time.Time) gin.H {
	return gin.H{
		"id":                 p.ID,
		"matchmaker_id":      p.MatchmakerID,
		"reference_user_id":  p.ReferenceUserID,
		"compatible_user_id": p.CompatibleUserID,
		"recipient_user_id":  p.RecipientUserID,
		"message":            p.Message,
		"status":             p.EffectiveStatus(now),
		"is_expired":         p.IsExpired(now),
		"response_message":   p.ResponseMessage,
		"responded_at":       p.RespondedAt,
		"created_at":         p.CreatedAt,
	}
}

func (s *Server) handleCreateProposition(c *gin.Context) {
	referenceID, okRef := formUint(c, "reference_user_id")
	compatibleID, okCompat := formUint(c, "compatible_user_id")
	if !okRef || !okCompat {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "reference_user_id and compatible_user_id are required"})
		return
	}

	actor := mustActor(c)
	created, err := s.propositions.Create(
		c.Request.Context(),
		actor,
		referenceID, compatibleID,
		formBool(c, "send_to_reference"), formBool(c, "send_to_compatible"),
		c.PostForm("message"),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]uint64, 0, len(created))
	for _, p := range created {
		ids = append(ids, p.ID)
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "proposition_ids": ids})
}

func (s *Server) handleRespondProposition(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor := mustActor(c)
	err := s.propositions.Respond(
		c.Request.Context(), actor, id,
		c.PostForm("status"), c.PostForm("response_message"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleListPropositions(c *gin.Context) {
	actor := mustActor(c)
	props, next, err := s.propositions.ListForRecipient(c.Request.Context(), actor, paginationToken(c), 20)
	if err != nil {
		respondError(c, err)
		return
	}
	s.renderPropositions(c, props, next)
}

func (s *Server) handleListSentPropositions(c *gin.Context) {
	actor := mustActor(c)
	props, next, err := s.propositions.ListForMatchmaker(c.Request.Context(), actor, paginationToken(c), 20)
	if err != nil {
		respondError(c, err)
		return
	}
	s.renderPropositions(c, props, next)
}

func (s *Server) renderPropositions(c *gin.Context, props []db.Proposition, next *string) {
	now := time.Now()
	out := make([]gin.H, 0, len(props))
	for _, p := range props {
		out = append(out, propositionView(p, now))
	}
	body := gin.H{"propositions": out}
	if next != nil {
		body["next_pagination_token"] = *next
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleCountPropositions(c *gin.Context) {
	actor := mustActor(c)
	count, err := s.propositions.CountOpen(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleCreatePropositionRequest(c *gin.Context) {
	referenceID, okRef := formUint(c, "reference_user_id")
	compatibleID, okCompat := formUint(c, "compatible_user_id")
	if !okRef || !okCompat {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "reference_user_id and compatible_user_id are required"})
		return
	}

	actor := mustActor(c)
	req, err := s.propositions.CreateRequest(
		c.Request.Context(), actor, referenceID, compatibleID, c.PostForm("message"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "request_id": req.ID})
}

func (s *Server) handleRespondPropositionRequest(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor := mustActor(c)
	err := s.propositions.RespondRequest(
		c.Request.Context(), actor, id,
		c.PostForm("status"),
		c.PostForm("rejection_reason"),
		formBool(c, "share_phone"),
		c.PostForm("organizer"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func propositionRequestView(r db.PropositionRequest) gin.H {
	return gin.H{
		"id":                 r.ID,
		"reference_user_id":  r.ReferenceUserID,
		"compatible_user_id": r.CompatibleUserID,
		"from_matchmaker_id": r.FromMatchmakerID,
		"to_matchmaker_id":   r.ToMatchmakerID,
		"message":            r.Message,
		"status":             r.Status,
		"rejection_reason":   r.RejectionReason,
		"share_phone":        r.SharePhone,
		"organizer":          r.Organizer,
		"responded_at":       r.RespondedAt,
		"created_at":         r.CreatedAt,
	}
}

func (s *Server) handlePropositionRequestInbox(c *gin.Context) {
	actor := mustActor(c)
	reqs, err := s.propositions.RequestInbox(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, propositionRequestView(r))
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

func (s *Server) handlePropositionRequestOutbox(c *gin.Context) {
	actor := mustActor(c)
	reqs, err := s.propositions.RequestOutbox(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, propositionRequestView(r))
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}
