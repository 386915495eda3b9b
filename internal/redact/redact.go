// Package redact masks personally identifiable substrings (phone numbers,
// UPI handles, payment card numbers, email addresses) in free text before it
// is stored or shown to other users.
//
// Detection runs as a pipeline of independent passes over the immutable
// input. Each pass claims byte spans; a later pass never claims a span that
// overlaps an earlier one. Precedence: phone, UPI handle, card, email.
// Masking preserves a recognizable fragment of each match so the author can
// still tell what was removed.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

const maskRune = 'X'

var (
	// Indian mobile numbers: optional +91/91/0 prefix, then ten digits
	// starting 6-9. Word boundaries keep the pattern out of longer digit runs.
	phonePattern = regexp.MustCompile(`\b(?:\+91[\-\s]?|91|0)?[6-9][0-9]{9}\b`)

	// UPI virtual payment addresses: handle@bank with an alphabetic bank code.
	upiPattern = regexp.MustCompile(`\b[a-zA-Z0-9][a-zA-Z0-9._\-]+@[a-zA-Z]{2,}\b`)

	// Candidate card numbers: 13-19 digits with optional single separators.
	// Only runs that strip to 13-16 digits and pass Luhn are masked.
	cardPattern = regexp.MustCompile(`\b(?:[0-9][ \-]?){12,18}[0-9]\b`)

	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
)

type span struct {
	start       int
	end         int
	replacement string
}

type detector func(text string) []span

var pipeline = []detector{detectPhones, detectUPIHandles, detectCards, detectEmails}

// Redact masks every detected PII span in text and returns the result.
// Text without detectable PII is returned unchanged.
func Redact(text string) string {
	var claimed []span
	for _, detect := range pipeline {
		for _, candidate := range detect(text) {
			if !overlapsAny(claimed, candidate) {
				claimed = append(claimed, candidate)
			}
		}
	}
	if len(claimed) == 0 {
		return text
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })

	var builder strings.Builder
	builder.Grow(len(text))
	cursor := 0
	for _, s := range claimed {
		builder.WriteString(text[cursor:s.start])
		builder.WriteString(s.replacement)
		cursor = s.end
	}
	builder.WriteString(text[cursor:])
	return builder.String()
}

func overlapsAny(claimed []span, candidate span) bool {
	for _, existing := range claimed {
		if candidate.start < existing.end && existing.start < candidate.end {
			return true
		}
	}
	return false
}

func detectPhones(text string) []span {
	var spans []span
	for _, loc := range phonePattern.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		spans = append(spans, span{start: loc[0], end: loc[1], replacement: maskPhone(match)})
	}
	return spans
}

// maskPhone keeps the first and last two digits of the number visible.
func maskPhone(match string) string {
	digitCount := 0
	for _, r := range match {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	out := []rune(match)
	seen := 0
	for i, r := range out {
		if r < '0' || r > '9' {
			continue
		}
		seen++
		if seen > 2 && seen <= digitCount-2 {
			out[i] = maskRune
		}
	}
	return string(out)
}

func detectUPIHandles(text string) []span {
	var spans []span
	for _, loc := range upiPattern.FindAllStringIndex(text, -1) {
		// A dot followed by a letter after the match means this is the local
		// part of an email address; leave it for the email pass.
		if loc[1]+1 < len(text) && text[loc[1]] == '.' && isAlpha(text[loc[1]+1]) {
			continue
		}
		match := text[loc[0]:loc[1]]
		spans = append(spans, span{start: loc[0], end: loc[1], replacement: maskUPI(match)})
	}
	return spans
}

// maskUPI keeps the first two characters of the handle and the bank suffix.
func maskUPI(match string) string {
	at := strings.LastIndexByte(match, '@')
	handle := match[:at]
	keep := 2
	if len(handle) < keep {
		keep = len(handle)
	}
	return handle[:keep] + strings.Repeat("*", len(handle)-keep) + match[at:]
}

func detectCards(text string) []span {
	var spans []span
	for _, loc := range cardPattern.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		digits := stripSeparators(match)
		if len(digits) < 13 || len(digits) > 16 {
			continue
		}
		if !luhnValid(digits) {
			continue
		}
		spans = append(spans, span{start: loc[0], end: loc[1], replacement: maskCard(match)})
	}
	return spans
}

// maskCard hides every digit except the last four, preserving separators.
func maskCard(match string) string {
	digitCount := 0
	for _, r := range match {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	out := []rune(match)
	seen := 0
	for i, r := range out {
		if r < '0' || r > '9' {
			continue
		}
		seen++
		if seen <= digitCount-4 {
			out[i] = maskRune
		}
	}
	return string(out)
}

func detectEmails(text string) []span {
	var spans []span
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		spans = append(spans, span{start: loc[0], end: loc[1], replacement: maskEmail(match)})
	}
	return spans
}

// maskEmail keeps the first character of the local part and the full domain.
func maskEmail(match string) string {
	at := strings.LastIndexByte(match, '@')
	local := match[:at]
	return local[:1] + strings.Repeat("*", len(local)-1) + match[at:]
}

func stripSeparators(value string) string {
	var builder strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// luhnValid reports whether the digit string passes the Luhn checksum.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
