// Package server exposes the HTTP surface: the mutation endpoints that feed
// the broadcast core, the catch-up fetch, and the WebSocket upgrade into
// the gateway.
package server

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"order-sync/auth"
	"order-sync/contract"
	"order-sync/domain"
	"order-sync/errors"
	"order-sync/gateway"
	"order-sync/services"
)

var validate = validator.New()

// StaffAccount is one entry of the staff directory the login endpoint
// checks against. Accounts are provisioned through configuration; user
// management is the surrounding platform's business.
type StaffAccount struct {
	PasswordHash string
	Role         domain.Role
}

type Server struct {
	log      *slog.Logger
	service  services.IOrderService
	tokens   *auth.TokenManager
	gateway  *gateway.Gateway
	staff    map[string]StaffAccount
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, service services.IOrderService,
	tokens *auth.TokenManager, gw *gateway.Gateway, staff map[string]StaffAccount) *Server {
	return &Server{
		log:     log,
		service: service,
		tokens:  tokens,
		gateway: gw,
		staff:   staff,
		upgrader: websocket.Upgrader{
			// Dashboards and guest pages are served from other origins of
			// the platform; access control happens in the announce handshake.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register wires all routes onto the Echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/login", s.login)
	e.POST("/orders", s.placeOrder)
	e.GET("/orders/active", s.listActive)
	e.POST("/tables/:id/notify", s.notifyTable)
	e.GET("/ws", s.serveWs)
	e.GET("/healthz", s.healthz)

	staffOnly := e.Group("/orders", s.staffAuth)
	staffOnly.PATCH("/:id/status", s.changeStatus)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	account, ok := s.staff[req.Username]
	if !ok || auth.CheckPassword(account.PasswordHash, req.Password) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.Issue(req.Username, account.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token issue failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"role":  account.Role,
	})
}

func (s *Server) placeOrder(c echo.Context) error {
	var cmd services.PlaceOrderCommand
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := s.service.PlaceOrder(c.Request().Context(), cmd)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, gateway.ToSnapshot(order))
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) changeStatus(c echo.Context) error {
	claims := staffClaims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing staff credential")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var req changeStatusRequest
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing status")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "unknown role")
	}

	order, err := s.service.ChangeStatus(c.Request().Context(), id,
		domain.OrderStatus(req.Status), role)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, gateway.ToSnapshot(order))
}

// listActive is the catch-up fetch. Staff authenticate with their token and
// see every active order; guests pass their table id and see only theirs.
func (s *Server) listActive(c echo.Context) error {
	scope, httpErr := s.resolveScope(c)
	if httpErr != nil {
		return httpErr
	}

	orders, err := s.service.ListActive(c.Request().Context(), scope)
	if err != nil {
		return mapServiceError(err)
	}
	snapshots := lo.Map(orders, func(order domain.Order, _ int) gateway.OrderSnapshot {
		return gateway.ToSnapshot(order)
	})
	return c.JSON(http.StatusOK, echo.Map{"orders": snapshots})
}

func (s *Server) resolveScope(c echo.Context) (contract.Scope, *echo.HTTPError) {
	if token := bearerToken(c); token != "" {
		claims, err := s.tokens.Parse(token)
		if err != nil {
			return contract.Scope{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			return contract.Scope{}, echo.NewHTTPError(http.StatusForbidden, "unknown role")
		}
		return contract.Scope{Role: role}, nil
	}

	tableID := c.QueryParam("table_id")
	if tableID == "" {
		return contract.Scope{}, echo.NewHTTPError(http.StatusBadRequest, "table_id required for guest fetch")
	}
	return contract.Scope{Role: domain.RoleGuest, TableID: tableID}, nil
}

type notifyRequest struct {
	Payload string `json:"payload"`
}

func (s *Server) notifyTable(c echo.Context) error {
	var req notifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.service.NotifyTable(c.Request().Context(), c.Param("id"), req.Payload)
	return c.NoContent(http.StatusAccepted)
}

// serveWs upgrades the request and hands the socket to the gateway, which
// owns it until disconnect.
func (s *Server) serveWs(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s.gateway.Handle(c.Request().Context(), gateway.NewWebSocketTransport(conn))
	return nil
}

func mapServiceError(err error) error {
	switch {
	case stderrors.Is(err, errors.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case stderrors.Is(err, errors.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case stderrors.Is(err, errors.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case stderrors.Is(err, errors.ErrEmptyOrder):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		var invalid validator.ValidationErrors
		if stderrors.As(err, &invalid) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
