package utils

// RedactToken keeps the first 6 and last 4 characters of a credential.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	r := []rune(token)
	if len(r) <= 12 {
		return "****"
	}
	return string(r[:6]) + "…" + string(r[len(r)-4:])
}
