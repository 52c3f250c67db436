// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements webhook deduplication. Messaging providers redeliver
// webhooks on timeouts and 5xx responses, and every delivery carries the same
// provider message SID. Replaying a delivery must return the original reply
// instead of advancing the customer's conversation a second time.
//
// Design goals:
//   - Keep transport concerns (SID extraction, context stashing) in
//     middleware.
//   - Decouple persistence via a narrow DedupeLookup function type.
//   - Leave the handler in control of serving the replayed reply; the
//     middleware only flags the request and stashes the stored text.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys used internally to stash dedupe state. Unexported and
// referenced via accessor helpers.
const (
	ctxKeyWebhookSID    = "webhook.sid"
	ctxKeyWebhookReplay = "webhook.replay" // bool: stored reply exists
	ctxKeyWebhookReply  = "webhook.reply"  // string: the stored reply text
)

// GetMessageSID returns the provider message SID stashed by WebhookDedupe.
// The second return value indicates presence.
func GetMessageSID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyWebhookSID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsWebhookReplay reports whether this request redelivers an already
// processed webhook. The rate limiter skips replays so a provider retry is
// never answered with a 429.
func IsWebhookReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyWebhookReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// StoredReply returns the reply recorded when the webhook was first
// processed. Only meaningful when IsWebhookReplay is true.
func StoredReply(c *gin.Context) string {
	v, ok := c.Get(ctxKeyWebhookReply)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// DedupeLookup answers whether a still-valid record exists for the provider
// message SID at the given time, returning the original reply when it does.
// Return an error only for lookup failures; lookup errors must not block
// normal processing.
type DedupeLookup func(ctx context.Context, sid string, now time.Time) (reply string, exists bool, err error)

// WebhookDedupe extracts the provider message SID from the posted form,
// stashes it in the request context, and marks the request as a replay when
// the lookup finds a prior record.
//
// Behavior:
//   - No SID in the form: the middleware is a no-op.
//   - Lookup error: treated as a first delivery (fail open).
//   - Replay: replay flag and stored reply are stashed; the handler decides
//     how to serve them.
func WebhookDedupe(lookup DedupeLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.PostForm("MessageSid")
		if sid == "" {
			c.Next()
			return
		}
		c.Set(ctxKeyWebhookSID, sid)

		if lookup != nil {
			if reply, exists, _ := lookup(c.Request.Context(), sid, time.Now().UTC()); exists {
				c.Set(ctxKeyWebhookReplay, true)
				c.Set(ctxKeyWebhookReply, reply)
			}
		}
		c.Next()
	}
}
