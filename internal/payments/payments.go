// Package payments produces the payment links texted to customers. Money is
// collected out-of-band by a hosted payment page; the backend only needs to
// mint a per-order link and accept the confirmation callback that marks the
// order paid.
package payments

import (
	"fmt"
	"net/url"
	"strings"
)

// LinkProvider mints a hosted payment link for one order.
type LinkProvider interface {
	PaymentLink(orderID string, amountCents int64) string
}

// StaticLink points customers at a fixed hosted payment page, carrying the
// order id and amount as query parameters so the page can call back into
// the confirmation endpoint.
type StaticLink struct {
	BaseURL string
}

// PaymentLink implements LinkProvider.
func (s StaticLink) PaymentLink(orderID string, amountCents int64) string {
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		return ""
	}
	q := url.Values{}
	q.Set("order", orderID)
	q.Set("amount", fmt.Sprintf("%.2f", float64(amountCents)/100))
	return base + "?" + q.Encode()
}
