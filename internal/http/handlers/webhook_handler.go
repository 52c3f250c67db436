// Package handlers – inbound SMS webhook.
//
// The messaging provider POSTs every customer text to this endpoint as a
// form body (From, Body, MessageSid) and renders whatever TwiML we answer
// with back to the customer. Two properties matter more than anything else
// here:
//
//  1. The provider must always get a 200 with TwiML. Errors inside the
//     conversation flow degrade to a generic apology; a 5xx would make the
//     provider redeliver the same message.
//  2. Redeliveries (same MessageSid) must replay the original reply instead
//     of advancing the conversation again. The dedupe middleware flags
//     replays; this handler records first deliveries.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/treehouse/go-batch-backend/internal/http/middleware"
	"github.com/treehouse/go-batch-backend/internal/repo"
)

// InboundSMS handles POST /webhook/sms.
func (h *Handler) InboundSMS(c *gin.Context) {
	if middleware.IsWebhookReplay(c) {
		twiml(c, middleware.StoredReply(c))
		return
	}

	from := c.PostForm("From")
	body := c.PostForm("Body")
	if from == "" {
		// Not a provider callback; answer JSON so misconfigured clients see
		// a real error instead of empty TwiML.
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing From")
		return
	}

	reply := h.Machine.Handle(c.Request.Context(), from, body)

	if sid, ok := middleware.GetMessageSID(c); ok {
		ttl := h.DedupeTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		if _, err := repo.CreateInboundMessage(c.Request.Context(), h.DB, sid, from, reply, ttl); err != nil &&
			!errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("recording webhook delivery failed")
		}
	}

	twiml(c, reply)
}
