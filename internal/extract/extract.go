// Package extract resolves a restaurant name out of free-form order text.
// Two implementations exist: a deterministic keyword matcher over the
// catalog (always available) and an optional remote model-backed classifier.
// The Fallback combinator degrades from the remote extractor to the keyword
// matcher, so the conversational flow keeps working when the model endpoint
// is down.
package extract

import "context"

// Extractor maps free text ("can I get 2 burritos from chipotle") to a
// canonical catalog restaurant name. ok is false when no restaurant is
// recognized; implementations must not return an error for plain non-matches.
type Extractor interface {
	ExtractRestaurant(ctx context.Context, text string) (name string, ok bool)
}

// Fallback tries Primary first and degrades to Secondary when Primary finds
// nothing. Primary may be nil, in which case only Secondary is consulted.
type Fallback struct {
	Primary   Extractor
	Secondary Extractor
}

// ExtractRestaurant implements Extractor.
func (f Fallback) ExtractRestaurant(ctx context.Context, text string) (string, bool) {
	if f.Primary != nil {
		if name, ok := f.Primary.ExtractRestaurant(ctx, text); ok {
			return name, true
		}
	}
	if f.Secondary == nil {
		return "", false
	}
	return f.Secondary.ExtractRestaurant(ctx, text)
}
