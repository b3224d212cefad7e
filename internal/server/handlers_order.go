package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/money"
	"github.com/comanda-app/comanda/internal/splitter"
)

func linesFromRequest(reqs []lineRequest) ([]models.OrderLine, error) {
	lines := make([]models.OrderLine, len(reqs))
	for i, r := range reqs {
		var meta models.Metadata
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &meta); err != nil {
				return nil, apperr.New(apperr.CodeInvalidArgument, "metadata must be a JSON object")
			}
		}
		lines[i] = models.OrderLine{
			MenuItemID: r.MenuItemID,
			Name:       r.Name,
			UnitPrice:  money.Cents(r.UnitPrice),
			Quantity:   r.Quantity,
			PayerID:    r.PayerID,
			SharedWith: r.SharedWith,
			Note:       r.Note,
			Metadata:   meta,
		}
	}
	return lines, nil
}

type createOrderRequest struct {
	Lines []lineRequest `json:"lines"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}
	lines, err := linesFromRequest(req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := s.orderSvc.CreateOrder(c.Request.Context(), c.Param("sessionID"), actorFrom(c), lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderView(order))
}

// visibleOrder fetches an order and checks the actor may read it: staff
// see any order, diners only orders of sessions they belong to.
func (s *Server) visibleOrder(c *gin.Context) (*models.Order, error) {
	order, err := s.orderSvc.GetOrder(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		return nil, err
	}
	if _, err := s.sessionSvc.GetSession(c.Request.Context(), order.SessionID, actorFrom(c)); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := s.visibleOrder(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

type addLinesRequest struct {
	Lines []lineRequest `json:"lines" binding:"required"`
}

func (s *Server) addLines(c *gin.Context) {
	var req addLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}
	lines, err := linesFromRequest(req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := s.orderSvc.AddLines(c.Request.Context(), c.Param("orderID"), actorFrom(c), lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

type chargesRequest struct {
	TaxCents      int64 `json:"tax_cents"`
	DiscountCents int64 `json:"discount_cents"`
}

func (s *Server) setCharges(c *gin.Context) {
	var req chargesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	order, err := s.orderSvc.SetCharges(c.Request.Context(), c.Param("orderID"), actorFrom(c),
		money.Cents(req.TaxCents), money.Cents(req.DiscountCents))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

func (s *Server) confirm(c *gin.Context) {
	order, err := s.orderSvc.Confirm(c.Request.Context(), c.Param("orderID"), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

type prepareRequest struct {
	EstimateSeconds int64 `json:"estimate_seconds"`
}

func (s *Server) startPreparing(c *gin.Context) {
	var req prepareRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	order, err := s.orderSvc.StartPreparing(c.Request.Context(), c.Param("orderID"), actorFrom(c),
		time.Duration(req.EstimateSeconds)*time.Second)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

func (s *Server) markReady(c *gin.Context) {
	order, err := s.orderSvc.MarkReady(c.Request.Context(), c.Param("orderID"), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

func (s *Server) deliver(c *gin.Context) {
	order, err := s.orderSvc.Deliver(c.Request.Context(), c.Param("orderID"), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	order, err := s.orderSvc.Cancel(c.Request.Context(), c.Param("orderID"), actorFrom(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

type splitRequest struct {
	Policy   string           `json:"policy" binding:"required"`
	PayerIDs []string         `json:"payer_ids"`
	Amounts  map[string]int64 `json:"amounts_cents"`
}

func (s *Server) finalizeSplit(c *gin.Context) {
	var req splitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	var policy splitter.Policy
	switch models.SplitPolicyKind(req.Policy) {
	case models.SplitEqual:
		policy = splitter.Equal(req.PayerIDs)
	case models.SplitByItem:
		policy = splitter.ByItem(req.PayerIDs)
	case models.SplitCustom:
		amounts := make(map[string]money.Cents, len(req.Amounts))
		for id, cents := range req.Amounts {
			amounts[id] = money.Cents(cents)
		}
		policy = splitter.Custom(amounts)
	case models.SplitPercentage:
		policy = splitter.Policy{Kind: models.SplitPercentage, PayerIDs: req.PayerIDs}
	default:
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "unknown split policy"))
		return
	}

	payments, err := s.orderSvc.FinalizeSplit(c.Request.Context(), c.Param("orderID"), actorFrom(c), policy)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]paymentJSON, len(payments))
	for i, p := range payments {
		views[i] = paymentView(p, true)
	}
	c.JSON(http.StatusCreated, gin.H{"payments": views})
}

func (s *Server) listPayments(c *gin.Context) {
	actor := actorFrom(c)
	if _, err := s.visibleOrder(c); err != nil {
		respondError(c, err)
		return
	}
	payments, err := s.orderSvc.ListPayments(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]paymentJSON, len(payments))
	for i, p := range payments {
		// Each diner sees their own pay link; staff see all of them.
		views[i] = paymentView(p, actor.Role.Staff() || p.PayerID == actor.ID)
	}
	c.JSON(http.StatusOK, gin.H{"payments": views})
}

type settleRequest struct {
	Token      string `json:"token" binding:"required"`
	Method     string `json:"method"`
	GatewayRef string `json:"gateway_ref"`
}

// settle records an out-of-band payment against a pay link. The signed
// token is the authorization; no session membership is required.
func (s *Server) settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}

	payment, order, err := s.orderSvc.Settle(c.Request.Context(), req.Token, req.Method, req.GatewayRef)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment": paymentView(payment, false),
		"order":   orderView(order),
	})
}
