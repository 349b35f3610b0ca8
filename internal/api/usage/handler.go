// Package usage exposes the scan quota to the frontend.
package usage

import (
	"errors"
	"net/http"

	"ats-scanner/internal/apperr"
	"ats-scanner/internal/logger"
	"ats-scanner/internal/quota"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	ledger    *quota.Ledger
	freeLimit int
	logger    *zap.Logger
}

func NewHandler(ledger *quota.Ledger, freeLimit int, log *zap.Logger) *Handler {
	return &Handler{ledger: ledger, freeLimit: freeLimit, logger: logger.OrNop(log)}
}

// CallerOf identifies the requester. Must run after OptionalAuth or
// AuthMiddleware.
func CallerOf(c *gin.Context) quota.Caller {
	return quota.Caller{UserID: c.GetUint("user_id"), Address: c.ClientIP()}
}

// GET /resume/usage-status
func (h *Handler) Status(c *gin.Context) {
	caller := CallerOf(c)
	d, err := h.ledger.Check(c.Request.Context(), caller, h.freeLimit)
	if err != nil {
		h.logger.Error("usage check failed", append(logger.Subject(caller.UserID, caller.Address), zap.Error(err))...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check usage"})
		return
	}
	c.JSON(http.StatusOK, d)
}

// POST /resume/record-scan
//
// Counts one scan that was scored outside this service. Scans made through
// POST /resume/scan are already counted and report "recorded": true.
func (h *Handler) RecordScan(c *gin.Context) {
	caller := CallerOf(c)
	err := h.ledger.Record(c.Request.Context(), caller)
	if errors.Is(err, quota.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("record scan failed", append(logger.Subject(caller.UserID, caller.Address), zap.Error(err))...)
		c.JSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
		return
	}
	c.Status(http.StatusNoContent)
}
