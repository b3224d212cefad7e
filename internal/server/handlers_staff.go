package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/models"
)

type staffRegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) staffRegister(c *gin.Context) {
	var req staffRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	staff, token, err := s.authSvc.RegisterStaff(c.Request.Context(),
		req.Email, req.Name, models.ActorRole(req.Role), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"staff": gin.H{"id": staff.ID, "email": staff.Email, "name": staff.Name, "role": staff.Role},
		"token": token,
	})
}

type staffLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) staffLogin(c *gin.Context) {
	var req staffLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	staff, token, err := s.authSvc.LoginStaff(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"staff": gin.H{"id": staff.ID, "email": staff.Email, "name": staff.Name, "role": staff.Role},
		"token": token,
	})
}

func (s *Server) kitchenQueue(c *gin.Context) {
	queue, err := s.orderSvc.KitchenQueue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]ticketJSON, len(queue))
	for i, t := range queue {
		views[i] = ticketView(t)
	}
	c.JSON(http.StatusOK, gin.H{"queue": views})
}

func (s *Server) waiterBoard(c *gin.Context) {
	board, err := s.orderSvc.WaiterBoard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	views := make(map[string][]ticketJSON, len(board))
	for status, tickets := range board {
		group := make([]ticketJSON, len(tickets))
		for i, t := range tickets {
			group[i] = ticketView(t)
		}
		views[string(status)] = group
	}
	c.JSON(http.StatusOK, gin.H{"board": views})
}

func (s *Server) dashboard(c *gin.Context) {
	summary, err := s.orderSvc.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	byStatus := make(map[string]int, len(summary.OrdersByStatus))
	for status, n := range summary.OrdersByStatus {
		byStatus[string(status)] = n
	}
	c.JSON(http.StatusOK, gin.H{
		"orders_by_status": byStatus,
		"open_sessions":    summary.OpenSessions,
		"live_revenue": moneyJSON{
			Cents:     int64(summary.LiveRevenue),
			Formatted: summary.LiveRevenue.String(),
		},
	})
}
