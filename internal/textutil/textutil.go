// Package textutil holds the small text helpers shared by extraction,
// detection and summarization.
package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Clean NFC-normalizes s and collapses whitespace runs into single spaces.
func Clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Len counts characters, not bytes.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Head returns the first n characters of s.
func Head(s string, n int) string {
	return Truncate(s, n)
}

// JoinCapped joins fragments with blank lines and stops appending once the
// running word count exceeds maxWords. The fragment that crosses the cap is
// kept whole. maxWords <= 0 disables the cap.
func JoinCapped(fragments []string, maxWords int) string {
	var (
		kept  []string
		words int
	)
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		kept = append(kept, f)
		words += len(strings.Fields(f))
		if maxWords > 0 && words > maxWords {
			break
		}
	}
	return strings.Join(kept, "\n\n")
}

// Paragraphs splits a plain-text body on line breaks, dropping empty lines.
func Paragraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = Clean(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
