package frontmatter

import (
	"strings"

	"github.com/inful/mdfp"
)

// Fingerprint returns the content fingerprint of a page. The frontmatter is
// canonicalized (sorted keys, LF newlines, no trailing newline) before
// hashing, and a fingerprint field already present is ignored.
func Fingerprint(fields map[string]any, body []byte) (string, error) {
	hashed := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == mdfp.FingerprintField {
			continue
		}
		hashed[k] = v
	}
	raw, err := SerializeYAML(hashed)
	if err != nil {
		return "", err
	}
	fm := strings.TrimSuffix(string(raw), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, string(body)), nil
}
