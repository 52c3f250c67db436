// Package handlers – order listing and payment confirmation endpoints.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/treehouse/go-batch-backend/internal/conversation"
	"github.com/treehouse/go-batch-backend/internal/msg"
	"github.com/treehouse/go-batch-backend/internal/repo"
	"github.com/treehouse/go-batch-backend/internal/services"
	"github.com/treehouse/go-batch-backend/internal/utils"
)

// Handler bundles the dependencies shared by all HTTP endpoints.
type Handler struct {
	Machine  *conversation.Machine
	Orders   *services.OrderService
	Notifier *msg.Notifier
	DB       *gorm.DB

	// DedupeTTL bounds how long webhook deliveries are remembered.
	DedupeTTL time.Duration
}

// New constructs the handler set.
func New(machine *conversation.Machine, orders *services.OrderService, notifier *msg.Notifier, db *gorm.DB, dedupeTTL time.Duration) *Handler {
	return &Handler{
		Machine:   machine,
		Orders:    orders,
		Notifier:  notifier,
		DB:        db,
		DedupeTTL: dedupeTTL,
	}
}

// pageResponse is the generic paginated listing envelope.
type pageResponse struct {
	Items    any   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// ListOrders handles GET /orders with ?page and ?page_size.
func (h *Handler) ListOrders(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}

	items, total, err := h.Orders.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list orders")
		return
	}
	ok(c, http.StatusOK, pageResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// GetOrder handles GET /orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := repo.GetOrder(c.Request.Context(), h.DB, c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load order")
		return
	}
	ok(c, http.StatusOK, o)
}

// paymentConfirmRequest is the body POSTed by the hosted payment page when a
// customer completes checkout.
type paymentConfirmRequest struct {
	OrderID string `json:"order_id" binding:"required"`

	// AmountCents is optional; when the payment page reports it, it must
	// cover the order fee.
	AmountCents int64 `json:"amount_cents"`
}

// ConfirmPayment handles POST /payments/confirm.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req paymentConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order_id is required")
		return
	}

	if req.AmountCents > 0 {
		o, err := repo.GetOrder(c.Request.Context(), h.DB, req.OrderID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
				return
			}
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load order")
			return
		}
		if req.AmountCents < o.FeeCents {
			fail(c, http.StatusBadRequest, ErrCodePaymentFailed, "amount does not cover the delivery fee")
			return
		}
	}

	o, err := h.Orders.MarkPaid(c.Request.Context(), req.OrderID)
	switch {
	case err == nil:
		h.Notifier.PaymentReceived(c.Request.Context(), o)
		ok(c, http.StatusOK, o)
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
	case errors.Is(err, services.ErrAlreadyDispatched):
		fail(c, http.StatusConflict, ErrCodeOrderLocked, "order can no longer be paid")
	default:
		fail(c, http.StatusInternalServerError, ErrCodePaymentFailed, "could not confirm payment")
	}
}
