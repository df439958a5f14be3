package utils

import "unicode/utf8"

func Truncate(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

func Truncate80(content string) string {
	return Truncate(content, 80)
}

// SplitByLimit breaks content into chunks of at most limit bytes, preferring
// newline boundaries and never splitting a UTF-8 sequence.
func SplitByLimit(content string, limit int) []string {
	if limit <= 0 || len(content) <= limit {
		if content == "" {
			return nil
		}
		return []string{content}
	}

	var chunks []string
	for len(content) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		if cut == 0 {
			// limit is narrower than the leading rune
			_, cut = utf8.DecodeRuneInString(content)
		}
		if nl := lastNewline(content[:cut]); nl > limit/2 {
			cut = nl + 1
		}
		chunks = append(chunks, content[:cut])
		content = content[cut:]
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
