package payments

import (
	"net/url"
	"testing"
)

func TestStaticLink(t *testing.T) {
	p := StaticLink{BaseURL: "https://pay.example.com/order/"}
	link := p.PaymentLink("o-123", 250)

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Host != "pay.example.com" || u.Path != "/order" {
		t.Fatalf("link = %q", link)
	}
	q := u.Query()
	if q.Get("order") != "o-123" {
		t.Fatalf("order = %q", q.Get("order"))
	}
	if q.Get("amount") != "2.50" {
		t.Fatalf("amount = %q", q.Get("amount"))
	}
}

func TestStaticLinkEmptyBase(t *testing.T) {
	if link := (StaticLink{}).PaymentLink("o-123", 250); link != "" {
		t.Fatalf("link = %q, want empty", link)
	}
}
