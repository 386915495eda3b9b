package stories

import "errors"

// maxTags caps how many tags a story may carry.
const maxTags = 3

// ErrInvalidTag indicates a filter tag outside the allowed set.
var ErrInvalidTag = errors.New("stories: invalid tag")

// allowedTags is the fixed vocabulary of scam categories.
var allowedTags = map[string]struct{}{
	"UPI":        {},
	"KYC":        {},
	"OTP":        {},
	"Job":        {},
	"Loan":       {},
	"Lottery":    {},
	"Phishing":   {},
	"Investment": {},
	"Other":      {},
}

// IsAllowedTag reports whether the tag belongs to the fixed vocabulary.
func IsAllowedTag(tag string) bool {
	_, ok := allowedTags[tag]
	return ok
}

// SanitizeTags filters the input down to allowed tags, drops duplicates while
// preserving first-occurrence order, and caps the result at three entries.
func SanitizeTags(raw []string) []string {
	sanitized := make([]string, 0, maxTags)
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		if !IsAllowedTag(tag) {
			continue
		}
		if _, duplicate := seen[tag]; duplicate {
			continue
		}
		seen[tag] = struct{}{}
		sanitized = append(sanitized, tag)
		if len(sanitized) == maxTags {
			break
		}
	}
	return sanitized
}
