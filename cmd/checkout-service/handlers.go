package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dokanify/checkout-core/internal/cart"
	"github.com/dokanify/checkout-core/internal/catalog"
	"github.com/dokanify/checkout-core/internal/coupon"
	"github.com/dokanify/checkout-core/internal/inventory"
	"github.com/dokanify/checkout-core/internal/order"
	"github.com/dokanify/checkout-core/internal/pricing"
)

const (
	headerUserID       = "X-User-ID"
	headerSessionToken = "X-Session-Token"
)

// identityFrom builds the explicit cart identity from request headers. An
// anonymous caller with no session yet gets a fresh token, echoed back so
// the client can keep using it.
func identityFrom(c *gin.Context) cart.Identity {
	if userID := c.GetHeader(headerUserID); userID != "" {
		return cart.ForUser(userID)
	}
	token := c.GetHeader(headerSessionToken)
	if token == "" {
		token = uuid.NewString()
	}
	c.Header(headerSessionToken, token)
	return cart.ForGuest(token)
}

func getCartHandler(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ct, items, err := carts.View(c.Request.Context(), identityFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cart": ct, "items": items})
	}
}

func addCartItemHandler(carts *cart.Service) gin.HandlerFunc {
	type request struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id"`
		Quantity  int    `json:"quantity"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product_id and quantity are required"})
			return
		}
		item, err := carts.AddItem(c.Request.Context(), identityFrom(c), req.ProductID, req.VariantID, req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func updateCartItemHandler(carts *cart.Service) gin.HandlerFunc {
	type request struct {
		Quantity int `json:"quantity"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		item, err := carts.UpdateItem(c.Request.Context(), identityFrom(c), c.Param("id"), req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func removeCartItemHandler(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := carts.RemoveItem(c.Request.Context(), identityFrom(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func clearCartHandler(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := carts.Clear(c.Request.Context(), identityFrom(c)); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func mergeCartHandler(carts *cart.Service) gin.HandlerFunc {
	type request struct {
		SessionToken string `json:"session_token"`
	}
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		var req request
		if err := c.ShouldBindJSON(&req); err != nil || req.SessionToken == "" || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_token and " + headerUserID + " are required"})
			return
		}
		res, err := carts.MergeGuestIntoUser(c.Request.Context(), req.SessionToken, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func createOrderHandler(asm *order.Assembler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		o, err := asm.PlaceOrder(c.Request.Context(), req.UserID, req.Lines)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

func getOrderHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func getOrderItemsHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := repo.GetItems(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func listOrdersByUserHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		orders, err := repo.ListByUser(c.Request.Context(), c.Param("user_id"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		if orders == nil {
			orders = []order.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

func attachCouponHandler(asm *order.Assembler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.AttachCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" || req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code and user_id are required"})
			return
		}
		discount, err := asm.AttachCoupon(c.Request.Context(), c.Param("id"), req.Code, req.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"discount": discount})
	}
}

func attachShippingHandler(asm *order.Assembler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var addr order.Address
		if err := c.ShouldBindJSON(&addr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		o, err := asm.AttachShippingAddress(c.Request.Context(), c.Param("id"), addr)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func updateOrderStatusHandler(asm *order.Assembler) gin.HandlerFunc {
	type request struct {
		Status order.Status `json:"status"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if err := asm.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": req.Status})
	}
}

// respondError translates the core's typed errors into HTTP results. Stock
// rejections carry the concrete ceiling so the client can re-quote at once.
func respondError(c *gin.Context, err error) {
	var (
		insufficient *inventory.InsufficientStockError
		conflict     *inventory.StockConflictError
		minOrder     *coupon.MinOrderError
	)
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":     insufficient.Error(),
			"available": insufficient.Available,
		})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "retry": true})
	case errors.As(err, &minOrder):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":            minOrder.Error(),
			"min_order_amount": minOrder.Min,
		})
	case errors.Is(err, coupon.ErrInvalidOrExpired),
		errors.Is(err, coupon.ErrUsageLimitExceeded),
		errors.Is(err, coupon.ErrAlreadyApplied):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrVariantNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, coupon.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrQuantity),
		errors.Is(err, cart.ErrInvalidIdentity),
		errors.Is(err, catalog.ErrProductUnavailable),
		errors.Is(err, catalog.ErrVariantMismatch),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrUserRequired),
		errors.Is(err, order.ErrQuantity),
		errors.Is(err, order.ErrVariantRequired),
		errors.Is(err, order.ErrAddressRequired),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, pricing.ErrInvalidPricing),
		errors.Is(err, order.ErrDuplicateOrderNumber):
		// Internal faults: already logged where they happened, never
		// surfaced with details.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
