package utils

// Truncate shortens s to at most n runes, used when embedding root-cause
// text into notification templates.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
