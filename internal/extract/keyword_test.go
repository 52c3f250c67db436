package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/treehouse/go-batch-backend/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(`{
		"dropoff": {"name": "Library", "address": "801 S Morgan St", "lat": 41.87, "lng": -87.65},
		"restaurants": [
			{"name": "Chipotle", "aliases": ["chipotle mexican grill"],
			 "pickup": {"address": "1132 S Clinton St", "lat": 41.86, "lng": -87.64}},
			{"name": "McDonald's", "aliases": ["mickey d's"],
			 "pickup": {"address": "2315 W Ogden Ave", "lat": 41.86, "lng": -87.68}},
			{"name": "Chick-fil-A", "aliases": ["chick fil a"],
			 "pickup": {"address": "1106 S Clinton St", "lat": 41.86, "lng": -87.64}}
		]
	}`))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return cat
}

func TestKeywordExtractRestaurant(t *testing.T) {
	k := NewKeywordExtractor(testCatalog(t))
	ctx := context.Background()

	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"can I get 2 burritos from chipotle", "Chipotle", true},
		{"CHIPOTLE please", "Chipotle", true},
		{"order from Chipotle Mexican Grill downtown", "Chipotle", true},
		{"a 10 piece nugget from chick-fil-a", "Chick-fil-A", true},
		{"chick fil a sandwich", "Chick-fil-A", true},
		{"fries from mickey d's", "McDonald's", true},
		{"just checking in", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := k.ExtractRestaurant(ctx, tc.text)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ExtractRestaurant(%q) = (%q, %v), want (%q, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestKeywordPrefersLongestMatch(t *testing.T) {
	cat, err := catalog.Parse([]byte(`{
		"dropoff": {"address": "a", "lat": 1, "lng": 1},
		"restaurants": [
			{"name": "Subway", "pickup": {"address": "x", "lat": 1, "lng": 1}},
			{"name": "Subway Express", "pickup": {"address": "y", "lat": 1, "lng": 1}}
		]
	}`))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	k := NewKeywordExtractor(cat)
	got, ok := k.ExtractRestaurant(context.Background(), "a footlong from subway express")
	if !ok || got != "Subway Express" {
		t.Fatalf("got (%q, %v), want longest match Subway Express", got, ok)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"  alex p  ": "Alex P",
		"ALEX":       "Alex",
		"jordan lee": "Jordan Lee",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeExtractor struct {
	name string
	ok   bool

	calls int
}

func (f *fakeExtractor) ExtractRestaurant(context.Context, string) (string, bool) {
	f.calls++
	return f.name, f.ok
}

func TestFallbackPrefersPrimary(t *testing.T) {
	primary := &fakeExtractor{name: "Chipotle", ok: true}
	secondary := &fakeExtractor{name: "McDonald's", ok: true}
	f := Fallback{Primary: primary, Secondary: secondary}

	got, ok := f.ExtractRestaurant(context.Background(), "anything")
	if !ok || got != "Chipotle" {
		t.Fatalf("got (%q, %v), want primary result", got, ok)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary consulted %d times, want 0", secondary.calls)
	}
}

func TestFallbackDegrades(t *testing.T) {
	primary := &fakeExtractor{ok: false}
	secondary := &fakeExtractor{name: "McDonald's", ok: true}
	f := Fallback{Primary: primary, Secondary: secondary}

	got, ok := f.ExtractRestaurant(context.Background(), "anything")
	if !ok || got != "McDonald's" {
		t.Fatalf("got (%q, %v), want secondary result", got, ok)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("calls = primary %d, secondary %d, want 1 each", primary.calls, secondary.calls)
	}
}

func TestFallbackNilPrimary(t *testing.T) {
	secondary := &fakeExtractor{name: "Chipotle", ok: true}
	f := Fallback{Secondary: secondary}
	if got, ok := f.ExtractRestaurant(context.Background(), "x"); !ok || got != "Chipotle" {
		t.Fatalf("got (%q, %v)", got, ok)
	}
}

func TestRemoteExtractor(t *testing.T) {
	cat := testCatalog(t)

	var gotReq remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(remoteResponse{Restaurant: "chipotle"})
	}))
	defer srv.Close()

	re := NewRemoteExtractor(srv.URL, cat, time.Second)
	got, ok := re.ExtractRestaurant(context.Background(), "burrito time")
	if !ok || got != "Chipotle" {
		t.Fatalf("got (%q, %v), want canonical Chipotle", got, ok)
	}
	if gotReq.Text != "burrito time" || len(gotReq.Candidates) != 3 {
		t.Fatalf("request = %+v, want text and 3 candidates", gotReq)
	}
}

func TestRemoteExtractorRejectsHallucination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(remoteResponse{Restaurant: "Olive Garden"})
	}))
	defer srv.Close()

	re := NewRemoteExtractor(srv.URL, testCatalog(t), time.Second)
	if got, ok := re.ExtractRestaurant(context.Background(), "pasta"); ok {
		t.Fatalf("accepted non-catalog reply %q", got)
	}
}

func TestRemoteExtractorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	re := NewRemoteExtractor(srv.URL, testCatalog(t), time.Second)
	if _, ok := re.ExtractRestaurant(context.Background(), "burrito"); ok {
		t.Fatalf("500 reply treated as a match")
	}
}

func TestRemoteExtractorUnreachable(t *testing.T) {
	re := NewRemoteExtractor("http://127.0.0.1:1/extract", testCatalog(t), 200*time.Millisecond)
	if _, ok := re.ExtractRestaurant(context.Background(), "burrito"); ok {
		t.Fatalf("unreachable endpoint treated as a match")
	}
}
