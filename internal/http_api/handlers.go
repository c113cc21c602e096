package http_api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kippis-app/loyalty-core/internal/mixprice"
	"github.com/kippis-app/loyalty-core/internal/redemption"
	"github.com/kippis-app/loyalty-core/pkg/validation"
)

// ScanRequest represents the JSON body for scanning a QR code
type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

// AdjustRequest represents the JSON body for a manual point adjustment.
// Points is validated by the service so that zero is rejected with a
// typed error rather than a bind failure.
type AdjustRequest struct {
	CustomerID  uint   `json:"customer_id" binding:"required"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// customerID resolves the authenticated customer identity set by the
// upstream auth boundary. Responds 401 and returns false when absent.
func (s *HTTPServer) customerID(c *gin.Context) (uint, bool) {
	raw := c.GetHeader("X-Customer-ID")
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success":    false,
			"error_code": "UNAUTHORIZED",
			"message":    "Customer identity is required",
		})
		return 0, false
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success":    false,
			"error_code": "UNAUTHORIZED",
			"message":    "Invalid customer identity",
		})
		return 0, false
	}

	return uint(id), true
}

// scan is a handler for the /qr/scan endpoint. It redeems a QR code for
// the authenticated customer.
func (s *HTTPServer) scan(c *gin.Context) {
	customerID, ok := s.customerID(c)
	if !ok {
		return
	}

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error_code": "INVALID_REQUEST",
			"message":    "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := validation.ValidateCode(req.Code); err != nil {
		s.logger.Debug("Invalid code format", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error_code": "INVALID_REQUEST",
			"message":    "Invalid code: " + err.Error(),
		})
		return
	}

	result, err := s.redemption.Redeem(c.Request.Context(), customerID, req.Code)
	if err != nil {
		var domainErr *redemption.Error
		if errors.As(err, &domainErr) {
			c.JSON(statusForError(domainErr.Code), gin.H{
				"success":    false,
				"error_code": domainErr.Code,
				"message":    domainErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error_code": redemption.RedemptionFailed,
			"message":    "Redemption failed. Please try again.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "QR code redeemed successfully.",
		"data":    result,
	})
}

// eligibility is a handler for the /qr/eligibility endpoint. It runs the
// optimistic pre-check without redeeming anything.
func (s *HTTPServer) eligibility(c *gin.Context) {
	customerID, ok := s.customerID(c)
	if !ok {
		return
	}

	code := c.Query("code")
	if err := validation.ValidateCode(code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error_code": "INVALID_REQUEST",
			"message":    "Invalid code: " + err.Error(),
		})
		return
	}

	result, err := s.redemption.CheckEligibility(c.Request.Context(), customerID, code)
	if err != nil {
		s.logger.Error("Eligibility check failed", "error", err, "code", code)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error_code": "INTERNAL_ERROR",
			"message":    "Failed to check eligibility",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// wallet is a handler for the /loyalty/wallet endpoint.
func (s *HTTPServer) wallet(c *gin.Context) {
	customerID, ok := s.customerID(c)
	if !ok {
		return
	}

	wallet, err := s.redemption.Wallet(c.Request.Context(), customerID)
	if err != nil {
		s.logger.Error("Failed to get wallet", "error", err, "customer_id", customerID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error_code": "INTERNAL_ERROR",
			"message":    "Failed to get wallet",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"customer_id": wallet.CustomerID,
			"points":      wallet.Points,
		},
	})
}

// transactions is a handler for the /loyalty/transactions endpoint.
func (s *HTTPServer) transactions(c *gin.Context) {
	customerID, ok := s.customerID(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	ledger, err := s.redemption.Ledger(c.Request.Context(), customerID, limit)
	if err != nil {
		s.logger.Error("Failed to list transactions", "error", err, "customer_id", customerID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error_code": "INTERNAL_ERROR",
			"message":    "Failed to list transactions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    ledger,
	})
}

// adjust is a handler for the /loyalty/adjust endpoint. It applies a
// manual, admin-attributed point adjustment.
func (s *HTTPServer) adjust(c *gin.Context) {
	rawAdmin := c.GetHeader("X-Admin-ID")
	adminID, err := strconv.ParseUint(rawAdmin, 10, 64)
	if err != nil || adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success":    false,
			"error_code": "UNAUTHORIZED",
			"message":    "Admin identity is required",
		})
		return
	}

	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error_code": "INVALID_REQUEST",
			"message":    "Invalid request body: " + err.Error(),
		})
		return
	}

	txn, err := s.redemption.AdjustPoints(c.Request.Context(), req.CustomerID, req.Points, req.Description, uint(adminID))
	if err != nil {
		if errors.Is(err, redemption.ErrInvalidAdjustment) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":    false,
				"error_code": "INVALID_REQUEST",
				"message":    err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error_code": "INTERNAL_ERROR",
			"message":    "Failed to adjust points",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    txn,
	})
}

// mixPrice is a handler for the /mix/price endpoint. It prices a mix
// configuration without persisting anything.
func (s *HTTPServer) mixPrice(c *gin.Context) {
	var cfg mixprice.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error_code": "INVALID_REQUEST",
			"message":    "Invalid request body: " + err.Error(),
		})
		return
	}

	quote, err := s.calculator.Calculate(c.Request.Context(), cfg)
	if err != nil {
		if errors.Is(err, mixprice.ErrInvalidConfiguration) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success":    false,
				"error_code": "INVALID_CONFIGURATION",
				"message":    err.Error(),
			})
			return
		}
		s.logger.Error("Mix price calculation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error_code": "INTERNAL_ERROR",
			"message":    "Failed to calculate price",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    quote,
	})
}

func statusForError(code redemption.ErrorCode) int {
	switch code {
	case redemption.CodeNotFound:
		return http.StatusNotFound
	case redemption.RedemptionFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
