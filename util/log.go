package util

// TruncateForLog shortens long strings (e.g. request bodies) before they are written to the log.
func TruncateForLog(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) > maxLength {
		return string(runes[:maxLength]) + "... [truncated]"
	}
	return s
}
