package core

import "regexp"

var keyPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeKey maps a caller-supplied identifier to a filesystem-safe key by
// replacing every run of characters outside [A-Za-z0-9_-] with a single
// underscore. It must be applied identically on the write and read paths so
// that the same raw identifier always resolves to the same key.
func SanitizeKey(raw string) string {
	return keyPattern.ReplaceAllString(raw, "_")
}
