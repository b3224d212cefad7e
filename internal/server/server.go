// Package server exposes the HTTP API: table scanning and membership,
// order lifecycle, split finalization, pay-link settlement, staff views and
// server-sent event streams.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/comanda-app/comanda/internal/auth"
	"github.com/comanda-app/comanda/internal/fanout"
	"github.com/comanda-app/comanda/internal/service"
)

// Server wires the services into a gin router.
type Server struct {
	engine      *gin.Engine
	tokens      *auth.JWTManager
	broadcaster *fanout.Broadcaster

	authSvc    *service.AuthService
	sessionSvc *service.SessionService
	orderSvc   *service.OrderService
}

// New creates the server and registers all routes.
func New(tokens *auth.JWTManager, broadcaster *fanout.Broadcaster,
	authSvc *service.AuthService, sessionSvc *service.SessionService, orderSvc *service.OrderService) *Server {

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	s := &Server{
		engine:      engine,
		tokens:      tokens,
		broadcaster: broadcaster,
		authSvc:     authSvc,
		sessionSvc:  sessionSvc,
		orderSvc:    orderSvc,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")

	// Staff accounts.
	v1.POST("/auth/staff/register", s.staffRegister)
	v1.POST("/auth/staff/login", s.staffLogin)

	// Table scan: authentication optional, guests get a token here.
	v1.POST("/tables/:tableID/scan", s.scanTable)

	// Pay links authorize themselves via the signed token.
	v1.POST("/pay/settle", s.settle)

	authed := v1.Group("", authenticate(s.tokens))
	{
		sessions := authed.Group("/sessions")
		sessions.GET("/:sessionID", s.getSession)
		sessions.POST("/:sessionID/members/:memberID/decision", s.decideMembership)
		sessions.POST("/:sessionID/close", s.closeSession)
		sessions.GET("/:sessionID/orders", s.listSessionOrders)
		sessions.POST("/:sessionID/orders", s.createOrder)
		sessions.GET("/:sessionID/events", s.sessionEvents)

		orders := authed.Group("/orders")
		orders.GET("/:orderID", s.getOrder)
		orders.POST("/:orderID/lines", s.addLines)
		orders.POST("/:orderID/confirm", s.confirm)
		orders.POST("/:orderID/cancel", s.cancel)
		orders.POST("/:orderID/split", s.finalizeSplit)
		orders.GET("/:orderID/payments", s.listPayments)

		staff := authed.Group("/staff", requireStaff())
		staff.POST("/orders/:orderID/charges", s.setCharges)
		staff.POST("/orders/:orderID/prepare", s.startPreparing)
		staff.POST("/orders/:orderID/ready", s.markReady)
		staff.POST("/orders/:orderID/deliver", s.deliver)
		staff.GET("/kitchen", s.kitchenQueue)
		staff.GET("/board", s.waiterBoard)
		staff.GET("/dashboard", s.dashboard)
		staff.GET("/events", s.staffEvents)
	}
}

// Handler returns the root handler. h2c lets HTTP/2 clients multiplex the
// event streams over cleartext connections behind a terminating proxy.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.engine, &http2.Server{})
}
