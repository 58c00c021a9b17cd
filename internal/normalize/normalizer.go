// Package normalize decides, for one attachment row, whether its payload can
// be transported as text into the strict destination encoding regime or must
// be base64-encoded, repairing salvageable charset damage on the way.
package normalize

import (
	"encoding/base64"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// EncodingBase64 is the content-encoding marker written when a payload has
// been wrapped in base64 for transport.
const EncodingBase64 = "base64"

// Filename suffixes that always denote binary payloads, whatever the declared
// content type says: documents, archives, images, executables, media.
var binaryExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
	"zip": {}, "gz": {}, "tgz": {}, "tar": {}, "bz2": {}, "7z": {}, "rar": {},
	"png": {}, "gif": {}, "jpg": {}, "jpeg": {}, "bmp": {}, "tif": {}, "tiff": {}, "ico": {},
	"exe": {}, "dll": {}, "bin": {}, "iso": {},
	"mp3": {}, "mp4": {}, "avi": {}, "mov": {}, "wav": {}, "ogg": {},
}

// HasBinaryExtension reports whether the filename carries one of the
// known-binary suffixes.
func HasBinaryExtension(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	_, ok := binaryExtensions[ext]
	return ok
}

// Attachment is the mutable view of one attachment row's transport-relevant
// columns. The transfer engine resolves column positions once per table and
// copies values in and out of this struct.
type Attachment struct {
	Content         []byte
	ContentType     string
	ContentEncoding string
	Filename        string
}

// Normalizer applies the text-vs-binary transport decision. The sniffing and
// charset-guessing collaborators are injectable; Strict turns unresolvable
// charset conditions into errors instead of the base64 fallback.
type Normalizer struct {
	Sniffer  Sniffer
	Detector Detector
	Strict   bool
}

func New(strict bool) *Normalizer {
	return &Normalizer{
		Sniffer:  DefaultSniffer(),
		Detector: DefaultDetector(),
		Strict:   strict,
	}
}

// Normalize mutates att in place. Rows already carrying a content-encoding
// marker were encoded by the source system and pass through untouched.
func (n *Normalizer) Normalize(att *Attachment) error {
	if att.ContentEncoding != "" && att.ContentEncoding != "none" {
		return nil
	}

	ctype := att.ContentType
	if !ValidMIMEType(ctype) {
		if sniffed := n.sniff(att.Content); sniffed != "" {
			ctype = sniffed
			att.ContentType = sniffed
		}
	}

	binary := strings.HasPrefix(ctype, "application") ||
		strings.HasPrefix(ctype, "image") ||
		HasBinaryExtension(att.Filename)

	if !binary {
		if !utf8.Valid(att.Content) {
			sniffed := n.sniff(att.Content)
			if strings.HasPrefix(ctype, "text/") && strings.HasPrefix(sniffed, "text/") {
				repaired, ok, err := repairCharset(n.Detector, att.Content, n.Strict)
				if err != nil {
					return err
				}
				if ok {
					att.Content = repaired
				} else {
					binary = true
				}
			} else {
				binary = true
			}
		}
	}

	if binary {
		encoded := make([]byte, base64.StdEncoding.EncodedLen(len(att.Content)))
		base64.StdEncoding.Encode(encoded, att.Content)
		att.Content = encoded
		att.ContentEncoding = EncodingBase64
	}
	return nil
}

func (n *Normalizer) sniff(payload []byte) string {
	return cleanMIMEType(n.Sniffer.DetectContentType(payload))
}
