package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// GenerateUniqueFilename sanitizes the original filename and appends a short
// random suffix so concurrent uploads never clobber each other inside dir.
func GenerateUniqueFilename(dir, original string) string {
	base := filepath.Base(original)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" {
		name = "upload"
	}

	for {
		suffix := uuid.NewString()[:8]
		candidate := name + "_" + suffix + ext
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}
