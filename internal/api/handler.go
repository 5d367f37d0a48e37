package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/redisclient"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const previewCacheTTL = 30 * time.Second

// Handler contains HTTP handlers
type Handler struct {
	coordinator *service.OrderCoordinator
	redemptions *service.RedemptionRegistry
	ledger      *service.LoyaltyLedger
	cache       *redisclient.Client
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	coordinator *service.OrderCoordinator,
	redemptions *service.RedemptionRegistry,
	ledger *service.LoyaltyLedger,
	cache *redisclient.Client,
) *Handler {
	return &Handler{
		coordinator: coordinator,
		redemptions: redemptions,
		ledger:      ledger,
		cache:       cache,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.checkout)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/buyers/:buyer_id/orders", h.listBuyerOrders)
		v1.GET("/cart/:buyer_id", h.getCart)
		v1.PUT("/cart/:buyer_id", h.updateCartLine)
		v1.POST("/discounts/preview", h.previewDiscount)
		v1.GET("/loyalty/:user_id", h.getLoyalty)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// checkout handles order creation. There is no idempotency key; a blind
// retry after a timeout may create a second order.
func (h *Handler) checkout(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.coordinator.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		status, code := checkoutErrorStatus(err)
		c.JSON(status, gin.H{
			"error":   code,
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, items, err := h.coordinator.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// listBuyerOrders handles listing a buyer's order history
func (h *Handler) listBuyerOrders(c *gin.Context) {
	buyerID, err := strconv.ParseInt(c.Param("buyer_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid buyer ID"})
		return
	}

	orders, err := h.coordinator.ListOrders(c.Request.Context(), buyerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getCart returns the buyer's current cart lines.
func (h *Handler) getCart(c *gin.Context) {
	buyerID, err := strconv.ParseInt(c.Param("buyer_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid buyer ID"})
		return
	}

	lines, err := h.coordinator.GetCart(c.Request.Context(), buyerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart_lines": lines})
}

type cartLineRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"gte=0"`
}

// updateCartLine upserts one cart line; quantity zero removes it.
func (h *Handler) updateCartLine(c *gin.Context) {
	buyerID, err := strconv.ParseInt(c.Param("buyer_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid buyer ID"})
		return
	}

	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	line := service.CartLine{ProductID: req.ProductID, Quantity: req.Quantity}
	if err := h.coordinator.UpdateCartLine(c.Request.Context(), buyerID, line); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type previewRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

// previewDiscount validates a discount code without consuming it.
func (h *Handler) previewDiscount(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	account, err := h.ledger.GetAccount(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "loyalty_account_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	if cached, err := h.cache.GetDiscountPreview(ctx, account.ID, req.Code); err == nil && cached != nil {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	result, err := h.redemptions.Validate(ctx, account.ID, req.Code)
	if err != nil {
		status, code := checkoutErrorStatus(err)
		c.JSON(status, gin.H{
			"error":   code,
			"details": err.Error(),
		})
		return
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := h.cache.CacheDiscountPreview(ctx, account.ID, req.Code, payload, previewCacheTTL); err != nil {
			h.logger.Warn("Failed to cache discount preview", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, result)
}

// getLoyalty returns balance, tier and recent ledger entries for a user.
func (h *Handler) getLoyalty(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx := c.Request.Context()

	account, err := h.ledger.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "loyalty_account_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	transactions, err := h.ledger.ListTransactions(ctx, account.ID, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":      account,
		"transactions": transactions,
	})
}

// checkoutErrorStatus maps checkout error kinds to HTTP status and a stable
// machine-readable code so the front end can re-render the cart accurately.
func checkoutErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, service.ErrDiscountNotFound):
		return http.StatusNotFound, "discount_not_found"
	case errors.Is(err, service.ErrLoyaltyAccountNotFound):
		return http.StatusNotFound, "loyalty_account_not_found"
	case errors.Is(err, service.ErrProductUnavailable):
		return http.StatusBadRequest, "product_unavailable"
	case errors.Is(err, service.ErrInsufficientInventory):
		return http.StatusConflict, "insufficient_inventory"
	case errors.Is(err, service.ErrDiscountNotActive):
		return http.StatusBadRequest, "discount_not_active"
	case errors.Is(err, service.ErrDiscountExpired):
		return http.StatusBadRequest, "discount_expired"
	case errors.Is(err, service.ErrInsufficientPoints):
		return http.StatusBadRequest, "insufficient_points"
	case errors.Is(err, service.ErrInvalidCart):
		return http.StatusBadRequest, "invalid_cart"
	case errors.Is(err, service.ErrAlreadyUsed):
		return http.StatusConflict, "redemption_already_used"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict_retry"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
