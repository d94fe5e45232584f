package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/divyanshmehta355/aurahub-notify/internal/errors"
	"github.com/divyanshmehta355/aurahub-notify/internal/logger"
	"github.com/divyanshmehta355/aurahub-notify/internal/metrics"
	"github.com/divyanshmehta355/aurahub-notify/internal/notification"
)

// notifyRequest is the body the web app sends after persisting a
// notification record. The notification is kept as raw JSON so the bytes
// pushed to the browser are exactly the bytes the web app produced.
type notifyRequest struct {
	RecipientID  string          `json:"recipientId"`
	Notification json.RawMessage `json:"notification"`
}

// handleNotify accepts "push this already-persisted notification now".
// Fire and forget: the record is durable before this endpoint is called, so
// the response never reports whether anyone was actually connected.
// POST /api/notify
func (s *Server) handleNotify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.BadRequest("invalid request body").WithDetails(err.Error()))
		return
	}

	if strings.TrimSpace(req.RecipientID) == "" {
		c.JSON(http.StatusBadRequest, errors.ValidationError("recipientId", "recipientId is required"))
		return
	}

	notif, apiErr := notification.Parse(req.Notification)
	if apiErr != nil {
		c.JSON(apiErr.Status, apiErr)
		return
	}

	metrics.Get().NotificationsIngestedTotal.WithLabelValues(notif.Type).Inc()

	delivered, err := s.pusher.Push(c.Request.Context(), req.RecipientID, req.Notification)
	if err != nil {
		// The record is already persisted; a failed push costs the recipient
		// a toast, not data. The caller does not retry by design.
		logger.Log.Error("push failed",
			logger.WithRecipient(req.RecipientID),
			zap.String("notification_id", notif.Key()),
			zap.Error(err),
		)
	} else {
		logger.Log.Info("notification ingested",
			logger.WithRecipient(req.RecipientID),
			zap.String("notification_id", notif.Key()),
			zap.String("type", notif.Type),
			zap.Int("delivered", delivered),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
