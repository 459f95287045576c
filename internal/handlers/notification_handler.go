package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"github.com/rafiq-dev/bandmate/backend/internal/repositories"
	"github.com/rafiq-dev/bandmate/backend/internal/services"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	service           *services.ConnectionService
	accountRepository repositories.AccountRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service *services.ConnectionService, accountRepo repositories.AccountRepository) *NotificationHandler {
	return &NotificationHandler{
		service:           service,
		accountRepository: accountRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor models.AccountCompact `json:"actor"`
}

func (h *NotificationHandler) enrichNotifications(c echo.Context, notifications []models.Notification) []EnrichedNotification {
	enriched := make([]EnrichedNotification, len(notifications))
	accountCache := make(map[string]models.AccountCompact)

	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n}
		if actor, ok := accountCache[n.ActorID]; ok {
			enriched[i].Actor = actor
		} else {
			account, err := h.accountRepository.GetByID(c.Request().Context(), n.ActorID)
			if err == nil {
				compact := account.ToCompact()
				accountCache[n.ActorID] = compact
				enriched[i].Actor = compact
			}
		}
	}
	return enriched
}

// GetNotifications retrieves the viewer's inbox, paged and newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	notifications, total, err := h.service.Notifications(c.Request().Context(), viewerID, page, limit)
	if err != nil {
		return connectionHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": h.enrichNotifications(c, notifications),
		"total":         total,
		"page":          page,
		"total_pages":   int(math.Ceil(float64(total) / float64(limit))),
	})
}

// GetUnreadCount returns the viewer's unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	count, err := h.service.UnreadNotificationCount(c.Request().Context(), viewerID)
	if err != nil {
		return connectionHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"unread_count": count})
}

// MarkAsRead marks one of the viewer's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	if err := h.service.MarkNotificationRead(c.Request().Context(), viewerID, c.Param("id")); err != nil {
		return connectionHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllAsRead marks the viewer's whole inbox as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	viewerID := getAccountIDFromContext(c)
	if viewerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account not authenticated")
	}

	if err := h.service.MarkAllNotificationsRead(c.Request().Context(), viewerID); err != nil {
		return connectionHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
