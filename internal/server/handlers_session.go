package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/models"
)

type scanRequest struct {
	// GuestName identifies a diner without an account; ignored when the
	// request carries a valid token.
	GuestName string `json:"guest_name"`
}

// scanTable handles a QR scan: the first scanner starts the session as
// owner, later scanners join as pending. Unauthenticated scanners become
// guests and receive a session-scoped token in the response.
func (s *Server) scanTable(c *gin.Context) {
	tableID := c.Param("tableID")

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	var actor models.Actor
	issueToken := false
	if claims, err := bearerClaims(c, s.tokens); err == nil {
		actor = claims.Actor()
	} else {
		if req.GuestName == "" {
			respondError(c, apperr.New(apperr.CodeInvalidArgument, "guest_name required without a token"))
			return
		}
		actor = models.Actor{ID: uuid.New().String(), Name: req.GuestName, Role: models.ActorGuest}
		issueToken = true
	}

	session, member, err := s.sessionSvc.StartOrJoin(c.Request.Context(), tableID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"session": sessionView(session),
		"member":  memberJSON{ID: member.ID, ActorID: member.ActorID, GuestName: member.GuestName, Role: member.Role, Status: member.Status, JoinedAt: member.JoinedAt, DecidedAt: member.DecidedAt},
	}
	if issueToken {
		token, err := s.authSvc.GuestToken(actor, session.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getSession(c *gin.Context) {
	session, err := s.sessionSvc.GetSession(c.Request.Context(), c.Param("sessionID"), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}

type decisionRequest struct {
	Approve bool `json:"approve"`
}

func (s *Server) decideMembership(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	member, err := s.sessionSvc.DecideMembership(c.Request.Context(),
		c.Param("sessionID"), c.Param("memberID"), req.Approve, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memberJSON{
		ID: member.ID, ActorID: member.ActorID, GuestName: member.GuestName,
		Role: member.Role, Status: member.Status,
		JoinedAt: member.JoinedAt, DecidedAt: member.DecidedAt,
	})
}

func (s *Server) closeSession(c *gin.Context) {
	session, err := s.sessionSvc.CloseSession(c.Request.Context(), c.Param("sessionID"), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}

func (s *Server) listSessionOrders(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if _, err := s.sessionSvc.GetSession(c.Request.Context(), sessionID, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}

	orders, err := s.orderSvc.ListSessionOrders(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]orderJSON, len(orders))
	for i, o := range orders {
		views[i] = orderView(o)
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}
