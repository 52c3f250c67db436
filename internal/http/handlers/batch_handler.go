// Package handlers – batch listing endpoint for the operator dashboard.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// batchSlotView is one restaurant's capacity in the current window.
type batchSlotView struct {
	Restaurant string `json:"restaurant"`
	Current    int    `json:"current"`
	Max        int    `json:"max"`
	Remaining  int    `json:"remaining"`
	FeeCents   int64  `json:"fee_cents"`
}

// batchListResponse is the GET /batches payload.
type batchListResponse struct {
	OpensAt  time.Time       `json:"opens_at"`
	ClosesAt time.Time       `json:"closes_at"`
	ReadyAt  time.Time       `json:"ready_at"`
	Slots    []batchSlotView `json:"slots"`
}

// ListBatches handles GET /batches: the currently open window and per
// restaurant capacity.
func (h *Handler) ListBatches(c *gin.Context) {
	w, slots := h.Orders.CurrentSlots(c.Request.Context())

	out := batchListResponse{
		OpensAt:  w.OpensAt,
		ClosesAt: w.ClosesAt,
		ReadyAt:  w.ReadyAt,
		Slots:    make([]batchSlotView, 0, len(slots)),
	}
	for _, s := range slots {
		out.Slots = append(out.Slots, batchSlotView{
			Restaurant: s.Restaurant,
			Current:    s.Current,
			Max:        s.Max,
			Remaining:  s.Max - s.Current,
			FeeCents:   s.FeeCents,
		})
	}
	ok(c, http.StatusOK, out)
}
