package normalize

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
)

// GuessKind tags the outcome of charset detection.
type GuessKind int

const (
	Unrecognized GuessKind = iota
	Unambiguous
	Ambiguous
)

// Guess is the tagged result of charset detection: exactly one candidate,
// several equally plausible candidates, or none at all.
type Guess struct {
	Kind     GuessKind
	Charsets []string
}

// Detector guesses the character encoding of raw bytes.
type Detector interface {
	Guess(payload []byte) Guess
}

// DefaultDetector guesses via saintfish/chardet, collapsing all candidates
// tied at the top confidence into one Guess.
func DefaultDetector() Detector {
	return &chardetDetector{det: chardet.NewTextDetector()}
}

type chardetDetector struct {
	det *chardet.Detector
}

func (c *chardetDetector) Guess(payload []byte) Guess {
	results, err := c.det.DetectAll(payload)
	if err != nil || len(results) == 0 {
		return Guess{Kind: Unrecognized}
	}
	best := results[0].Confidence
	var charsets []string
	for _, r := range results {
		if r.Confidence == best {
			charsets = append(charsets, r.Charset)
		}
	}
	if len(charsets) == 1 {
		return Guess{Kind: Unambiguous, Charsets: charsets}
	}
	return Guess{Kind: Ambiguous, Charsets: charsets}
}

// UnrecoverableError marks a payload whose encoding cannot be determined or
// repaired safely. It aborts the owning table's transfer in strict mode.
type UnrecoverableError struct {
	Reason string
}

func (e *UnrecoverableError) Error() string {
	return "unrecoverable content encoding: " + e.Reason
}

var latinCharmaps = map[string]*charmap.Charmap{
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
}

// repairCharset attempts a best-effort repair of payload into valid UTF-8.
// Trailing NUL padding is stripped first. The bool result reports whether the
// returned bytes are safe to transport as text; a false result means the
// caller should fall back to base64. In strict mode the two conditions the
// tool cannot resolve safely (ambiguity without a UTF-8 candidate, no
// recognized encoding) surface as *UnrecoverableError instead.
func repairCharset(det Detector, payload []byte, strict bool) ([]byte, bool, error) {
	trimmed := bytes.TrimRight(payload, "\x00")

	guess := det.Guess(trimmed)
	switch guess.Kind {
	case Unrecognized:
		if strict {
			return nil, false, &UnrecoverableError{Reason: "no encoding recognized"}
		}
		return nil, false, nil

	case Unambiguous:
		cs := strings.ToLower(guess.Charsets[0])
		if cs == "utf-8" || cs == "ascii" || cs == "us-ascii" {
			// Already valid per the detector; the strict re-validation
			// below decides whether we trust it.
			return trimmed, utf8.Valid(trimmed), nil
		}
		if cm, ok := latinCharmaps[cs]; ok {
			decoded, err := cm.NewDecoder().Bytes(trimmed)
			if err != nil {
				return nil, false, nil
			}
			return decoded, utf8.Valid(decoded), nil
		}
		// A single exotic guess (Shift_JIS etc.) is not one of the
		// encodings this tool knows how to repair.
		return nil, false, nil

	default: // Ambiguous
		for _, cs := range guess.Charsets {
			if strings.EqualFold(cs, "utf-8") {
				decoded := bytes.ToValidUTF8(trimmed, []byte("�"))
				return decoded, utf8.Valid(decoded), nil
			}
		}
		if strict {
			return nil, false, &UnrecoverableError{
				Reason: fmt.Sprintf("ambiguous charsets %s", strings.Join(guess.Charsets, ", ")),
			}
		}
		return nil, false, nil
	}
}
