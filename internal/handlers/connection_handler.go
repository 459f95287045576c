package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"github.com/rafiq-dev/bandmate/backend/internal/services"
)

// ConnectionHandler exposes the connection subsystem over HTTP. It is a thin
// client of the service: bind, validate, attribute the acting account, call,
// map errors. The three UI locations (channel header, find-musicians panel,
// dashboard sidebar) all go through these routes.
type ConnectionHandler struct {
	service *services.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(service *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// RegisterConnectionRoutes registers connection-related routes
func (h *ConnectionHandler) RegisterConnectionRoutes(g *echo.Group) {
	g.GET("/connections/state/:accountID", h.GetConnectionState)
	g.POST("/connections/requests", h.SendRequest)
	g.POST("/connections/requests/:id/accept", h.AcceptRequest)
	g.POST("/connections/requests/:id/decline", h.DeclineRequest)
	g.DELETE("/connections/requests/:id", h.CancelRequest)
	g.GET("/connections/requests/incoming", h.GetIncomingRequests)
	g.GET("/connections/requests/outgoing", h.GetOutgoingRequests)
	g.GET("/friends", h.GetFriends)
	g.DELETE("/friends/:accountID", h.Unfriend)
}

// GetConnectionState resolves the relationship between the viewer and another account
func (h *ConnectionHandler) GetConnectionState(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	otherID := c.Param("accountID")
	state, err := h.service.Resolve(c.Request().Context(), viewerID, otherID)
	if err != nil {
		return connectionHTTPError(err)
	}
	return c.JSON(http.StatusOK, state)
}

// SendRequest sends a connection request from the viewer to another account
func (h *ConnectionHandler) SendRequest(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	var req models.SendConnectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	request, created, err := h.service.Send(c.Request().Context(), viewerID, req.ToID)
	if err != nil {
		return connectionHTTPError(err)
	}
	if !created {
		// Already pending (either direction) or already friends: the caller
		// wanted "ensure a request exists", which is satisfied.
		return c.JSON(http.StatusOK, map[string]interface{}{
			"created": false,
			"request": request,
		})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"created": true,
		"request": request,
	})
}

// AcceptRequest accepts a pending request addressed to the viewer
func (h *ConnectionHandler) AcceptRequest(c echo.Context) error {
	return h.transition(c, h.service.Accept)
}

// DeclineRequest declines a pending request addressed to the viewer
func (h *ConnectionHandler) DeclineRequest(c echo.Context) error {
	return h.transition(c, h.service.Decline)
}

// CancelRequest cancels a pending request sent by the viewer
func (h *ConnectionHandler) CancelRequest(c echo.Context) error {
	return h.transition(c, h.service.Cancel)
}

// transition runs one of the accept/decline/cancel operations for the
// request named in the path, acting as the authenticated account
func (h *ConnectionHandler) transition(c echo.Context, op func(ctx context.Context, requestID, actorID string) error) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	requestID := c.Param("id")
	if requestID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request ID")
	}

	if err := op(c.Request().Context(), requestID, viewerID); err != nil {
		return connectionHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetIncomingRequests lists pending requests addressed to the viewer
func (h *ConnectionHandler) GetIncomingRequests(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	requests, err := h.service.ListIncoming(c.Request().Context(), viewerID)
	if err != nil {
		return connectionHTTPError(err)
	}
	return c.JSON(http.StatusOK, requests)
}

// GetOutgoingRequests lists pending requests sent by the viewer
func (h *ConnectionHandler) GetOutgoingRequests(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	requests, err := h.service.ListOutgoing(c.Request().Context(), viewerID)
	if err != nil {
		return connectionHTTPError(err)
	}
	return c.JSON(http.StatusOK, requests)
}

// GetFriends lists the viewer's friends
func (h *ConnectionHandler) GetFriends(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	friends, err := h.service.ListFriends(c.Request().Context(), viewerID)
	if err != nil {
		return connectionHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"friends": friends})
}

// Unfriend dissolves the friendship between the viewer and another account
func (h *ConnectionHandler) Unfriend(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	otherID := c.Param("accountID")
	if err := h.service.Unfriend(c.Request().Context(), viewerID, otherID, viewerID); err != nil {
		return connectionHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// getAccountIDFromContext returns the acting account set by the auth middleware
func getAccountIDFromContext(c echo.Context) string {
	accountID, _ := c.Get("accountID").(string)
	return accountID
}

// connectionHTTPError maps service errors to HTTP responses. Internal
// identifiers and store errors are not leaked to end users.
func connectionHTTPError(err error) error {
	var partial *services.PartialFriendshipError
	switch {
	case errors.Is(err, services.ErrSelfReference):
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot send a connection request to yourself")
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, services.ErrNotFriends):
		return echo.NewHTTPError(http.StatusConflict, "Accounts are not connected")
	case errors.As(err, &partial):
		return echo.NewHTTPError(http.StatusBadGateway, "Could not update friendship status, please retry")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not update friendship status, please retry")
	}
}
