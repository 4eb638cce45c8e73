package service

import (
	"regexp"
	"strings"
)

// Driver replies arrive as free-form chat text. An acceptance names the
// order's display code, optionally prefixed by an accept word in English or
// Chinese, e.g. "accept D-0042" or "接單 D-0042" or just "D-0042".
var acceptReplyPattern = regexp.MustCompile(`(?i)^(?:accept|take|接單|接单)?\s*(D-\d{4})$`)

// ParseAcceptReply extracts the display code from a driver's chat reply.
// Returns false when the text is not an acceptance.
func ParseAcceptReply(text string) (string, bool) {
	m := acceptReplyPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}
