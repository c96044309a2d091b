package pipeline

import (
	"path/filepath"
	"strings"
)

const fallbackName = "video.mp4"

// sanitizeFilename maps an untrusted client-supplied filename to a safe
// local one. Path components are stripped and anything outside a small
// allowlist is dropped; names that sanitize to nothing become fallbackName.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		}
	}

	out := strings.TrimSpace(b.String())
	ext := filepath.Ext(out)
	if strings.Trim(strings.TrimSuffix(out, ext), ". ") == "" {
		return fallbackName
	}
	return out
}
