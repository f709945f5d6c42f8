package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// paramID parses the :id route segment.
func paramID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleActivate(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor := mustActor(c)
	if err := s.accounts.Activate(c.Request.Context(), actor, id, c.PostForm("reason")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "account activated"})
}

func (s *Server) handleDeactivate(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor := mustActor(c)
	if err := s.accounts.Deactivate(c.Request.Context(), actor, id, c.PostForm("reason")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "account deactivated"})
}

func (s *Server) handleSubmitReactivation(c *gin.Context) {
	actor := mustActor(c)
	req, err := s.accounts.SubmitReactivation(c.Request.Context(), actor, c.PostForm("reason"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "request_id": req.ID})
}

func (s *Server) handleListReactivations(c *gin.Context) {
	actor := mustActor(c)
	reqs, err := s.accounts.ListPendingReactivations(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, gin.H{
			"id":         r.ID,
			"user_id":    r.UserID,
			"reason":     r.Reason,
			"status":     r.Status,
			"created_at": r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

func (s *Server) handleReviewReactivation(decision string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		actor := mustActor(c)
		if err := s.accounts.ReviewReactivation(c.Request.Context(), actor, id, decision, c.PostForm("review_notes")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": decision})
	}
}

func (s *Server) handleAssign(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	matchmakerID, err := strconv.ParseUint(c.PostForm("matchmaker_id"), 10, 64)
	if err != nil || matchmakerID == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"matchmaker_id": "a matchmaker is required"}})
		return
	}
	actor := mustActor(c)
	if err := s.accounts.Assign(c.Request.Context(), actor, id, matchmakerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleUnassign(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor := mustActor(c)
	if err := s.accounts.Unassign(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleApproveStaff(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		actor := mustActor(c)
		if err := s.accounts.ApproveStaff(c.Request.Context(), actor, id, approve); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
