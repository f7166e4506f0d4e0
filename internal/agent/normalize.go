package agent

import (
	"strings"
)

// Conversational prefixes models emit before structured payloads. Matching
// is case-insensitive against the start of the first line.
var fillerPrefixes = []string{
	"sure,",
	"sure!",
	"certainly",
	"of course",
	"here is",
	"here's",
	"here are",
	"below is",
	"the following",
	"i have",
	"i've",
}

// Normalize strips code-fence markup and leading conversational filler from
// a raw model response. It is idempotent: already-clean payloads pass through
// unchanged, and Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripFiller(s)
	s = stripFences(s)
	return strings.TrimSpace(s)
}

// stripFiller drops leading prose lines until a line that looks like payload
// (JSON delimiter) or the text runs out of filler.
func stripFiller(s string) string {
	lines := strings.Split(s, "\n")
	start := 0
	for start < len(lines) {
		line := strings.TrimSpace(lines[start])
		if line == "" {
			start++
			continue
		}
		if isPayloadStart(line) {
			break
		}
		if !isFiller(line) {
			break
		}
		start++
	}
	return strings.Join(lines[start:], "\n")
}

func isPayloadStart(line string) bool {
	switch line[0] {
	case '{', '[', '`':
		return true
	}
	return false
}

func isFiller(line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range fillerPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// stripFences removes a surrounding triple-backtick block, including an
// optional language tag on the opening fence.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}

	// Opening fence may carry a language tag; drop the whole line.
	body := lines[1:]

	// Closing fence must be the last non-empty line.
	end := len(body)
	for end > 0 && strings.TrimSpace(body[end-1]) == "" {
		end--
	}
	if end == 0 || strings.TrimSpace(body[end-1]) != "```" {
		return s
	}
	return strings.Join(body[:end-1], "\n")
}
