// Package langdetect classifies article text into an ISO 639-1 code.
package langdetect

import (
	"unicode"

	"github.com/abadojack/whatlanggo"

	"newsbrief/internal/model"
	"newsbrief/internal/textutil"
)

const (
	// SampleChars bounds how much of the text is inspected.
	SampleChars   = 1000
	minLetters    = 20
	minConfidence = 0.5
)

// Detector wraps whatlanggo. The zero value is ready to use.
type Detector struct {
	// Whitelist restricts detection to these languages when non-empty.
	Whitelist []whatlanggo.Lang
}

func New() *Detector {
	return &Detector{}
}

// Detect returns a language code or model.LanguageUnknown. It never fails.
func (d *Detector) Detect(text string) string {
	sample := textutil.Head(text, SampleChars)
	if countLetters(sample) < minLetters {
		return model.LanguageUnknown
	}

	var info whatlanggo.Info
	if len(d.Whitelist) > 0 {
		allowed := make(map[whatlanggo.Lang]bool, len(d.Whitelist))
		for _, l := range d.Whitelist {
			allowed[l] = true
		}
		info = whatlanggo.DetectWithOptions(sample, whatlanggo.Options{Whitelist: allowed})
	} else {
		info = whatlanggo.Detect(sample)
	}

	if info.Lang < 0 || (!info.IsReliable() && info.Confidence < minConfidence) {
		return model.LanguageUnknown
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return model.LanguageUnknown
	}
	return code
}

// DetectWithHint falls back to hint (e.g. the page's <html lang>) when the
// text alone is inconclusive.
func (d *Detector) DetectWithHint(text, hint string) string {
	if lang := d.Detect(text); lang != model.LanguageUnknown {
		return lang
	}
	if hint = normalizeHint(hint); hint != "" {
		return hint
	}
	return model.LanguageUnknown
}

// normalizeHint turns "en-US" or "uk_UA" into "en" / "uk".
func normalizeHint(hint string) string {
	var out []rune
	for _, r := range hint {
		if r == '-' || r == '_' {
			break
		}
		if !unicode.IsLetter(r) {
			return ""
		}
		out = append(out, unicode.ToLower(r))
	}
	if len(out) != 2 {
		return ""
	}
	return string(out)
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
