// Package msg implements the outbound messaging side of the application: the
// SMS provider client used to push texts outside the webhook request/reply
// cycle, and the operator notifier built on top of it.
//
// Inbound messages arrive over the provider webhook and are answered in the
// HTTP response; this package only covers proactive sends (operator alerts,
// dispatch notifications).
package msg

import "context"

// Channel sends one text message and returns the provider message SID.
// Implementations must be safe for concurrent use.
type Channel interface {
	Send(ctx context.Context, to, body string) (sid string, err error)
}

// NopChannel discards messages. Used when no provider credentials are
// configured (local development) so callers need no nil checks.
type NopChannel struct{}

// Send implements Channel.
func (NopChannel) Send(context.Context, string, string) (string, error) { return "", nil }
