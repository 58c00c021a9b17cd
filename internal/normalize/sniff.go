package normalize

import (
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Sniffer classifies raw payload bytes by file-signature magic rules and
// returns a best-guess MIME type string, or "" when nothing is recognized.
type Sniffer interface {
	DetectContentType(payload []byte) string
}

// DefaultSniffer sniffs via gabriel-vasile/mimetype.
func DefaultSniffer() Sniffer {
	return mimetypeSniffer{}
}

type mimetypeSniffer struct{}

func (mimetypeSniffer) DetectContentType(payload []byte) string {
	return mimetype.Detect(payload).String()
}

var mimeTokenPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9!#$&^_.+-]*/[A-Za-z0-9][A-Za-z0-9!#$&^_.+-]*$`)

// ValidMIMEType reports whether s is a well-formed type/subtype token pair,
// with no parameters.
func ValidMIMEType(s string) bool {
	return mimeTokenPattern.MatchString(s)
}

// cleanMIMEType drops any parameter suffix (";charset=..." and friends) and
// rejects results that are not a well-formed type/subtype pair.
func cleanMIMEType(raw string) string {
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if !ValidMIMEType(raw) {
		return ""
	}
	return raw
}
