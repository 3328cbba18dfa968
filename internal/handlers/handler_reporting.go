package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/passbookhq/passbook/internal/apperrors"
	portssvc "github.com/passbookhq/passbook/internal/core/ports/services"
	"github.com/passbookhq/passbook/internal/middleware"
)

// reportingHandler handles HTTP requests for exports and checks.
type reportingHandler struct {
	reportingService portssvc.ReportingService
}

// newReportingHandler creates a new reportingHandler.
func newReportingHandler(rs portssvc.ReportingService) *reportingHandler {
	return &reportingHandler{
		reportingService: rs,
	}
}

// registerReportingRoutes registers the export and verification routes on the
// session-guarded account group.
func registerReportingRoutes(owned *gin.RouterGroup, reportingService portssvc.ReportingService) {
	h := newReportingHandler(reportingService)

	owned.GET("/transactions/:txID/receipt", h.getReceipt)
	owned.GET("/export", h.exportCSV)
	owned.GET("/consistency", h.checkConsistency)
}

// getReceipt godoc
// @Summary Get a transaction receipt
// @Description Renders one ledger entry as a plain-text receipt
// @Tags reporting
// @Produce  plain
// @Param   accountNumber path string true "Account number"
// @Param   txID path int true "Transaction ID"
// @Success 200 {string} string "Receipt text"
// @Failure 400 {object} map[string]string "Invalid transaction ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Transaction not found"
// @Failure 500 {object} map[string]string "Failed to render receipt"
// @Security BearerAuth
// @Router /accounts/{accountNumber}/transactions/{txID}/receipt [get]
func (h *reportingHandler) getReceipt(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountNumber := c.Param("accountNumber")

	txID, err := strconv.ParseInt(c.Param("txID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	receipt, err := h.reportingService.RenderReceipt(c.Request.Context(), accountNumber, txID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Transaction not found for receipt", slog.Int64("tx_id", txID))
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		} else {
			logger.Error("Failed to render receipt", slog.String("error", err.Error()), slog.Int64("tx_id", txID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render receipt"})
		}
		return
	}

	c.String(http.StatusOK, receipt)
}

// exportCSV godoc
// @Summary Export history as CSV
// @Description Downloads the account's complete transaction history as a CSV attachment
// @Tags reporting
// @Produce  text/csv
// @Param   accountNumber path string true "Account number"
// @Success 200 {string} string "CSV data"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Account not found"
// @Failure 500 {object} map[string]string "Failed to export history"
// @Security BearerAuth
// @Router /accounts/{accountNumber}/export [get]
func (h *reportingHandler) exportCSV(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountNumber := c.Param("accountNumber")

	// Buffer the export so an error mid-write can still produce a JSON
	// error response instead of a truncated file.
	var buf bytes.Buffer
	rows, err := h.reportingService.ExportTransactionsCSV(c.Request.Context(), accountNumber, &buf)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Account not found for export")
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			logger.Error("Failed to export history", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export history"})
		}
		return
	}

	logger.Info("History export sent", slog.Int("rows", rows))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "passbook_"+accountNumber+".csv"))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// checkConsistency godoc
// @Summary Verify balance consistency
// @Description Recomputes the balance from the account's ledger entries and compares it against the stored balance
// @Tags reporting
// @Produce  json
// @Param   accountNumber path string true "Account number"
// @Success 200 {object} dto.ConsistencyResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Account not found"
// @Failure 500 {object} map[string]string "Failed to verify consistency"
// @Security BearerAuth
// @Router /accounts/{accountNumber}/consistency [get]
func (h *reportingHandler) checkConsistency(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountNumber := c.Param("accountNumber")

	resp, err := h.reportingService.VerifyConsistency(c.Request.Context(), accountNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Account not found for consistency check")
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			logger.Error("Failed to verify consistency", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify consistency"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
