// Package merger combines per-chunk transcriptions into one document
// (spec §4.6). The algorithm is ported from the original implementation's
// worker/merger.py (ResultMerger.merge_chunks / _clean_transcription /
// _merge_with_overlap_removal / _find_overlap / _final_cleanup), expressed
// as a pure function over already-ordered chunk text rather than a
// stateful logging object.
package merger

import (
	"regexp"
	"strings"
)

const (
	minOverlap = 10
	maxOverlap = 100
)

var (
	whitespaceRun      = regexp.MustCompile(`\s+`)
	repeatedTerminator = regexp.MustCompile(`(\.)\.+|(!)!+|(\?)\?+`)
	spaceBeforePunct   = regexp.MustCompile(`\s+([.,!?])`)
	punctNoSpaceAfter  = regexp.MustCompile(`([.,!?])([^\s.,!?])`)
	spaceBeforeCloser  = regexp.MustCompile(`\s+([)\]"}])`)
	openerTrailingWS   = regexp.MustCompile(`([(\["{])\s*`)
)

// Merge joins texts (one per successfully-transcribed chunk, already in
// ascending index order) into a single document, removing inter-chunk
// overlap and normalizing punctuation/whitespace. Chunks that failed
// transcription are simply absent from texts; Merge does not need to know
// about them (spec §4.6: "their absence does not abort the merge").
func Merge(texts []string) string {
	cleaned := make([]string, 0, len(texts))
	for _, t := range texts {
		if c := clean(t); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}

	merged := mergeWithOverlapRemoval(cleaned)
	return finalCleanup(merged)
}

// clean strips outer whitespace, collapses whitespace runs, and collapses
// repeated sentence-terminal punctuation (spec §4.6 step 1).
func clean(text string) string {
	text = strings.TrimSpace(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = repeatedTerminator.ReplaceAllString(text, "$1$2$3")
	return text
}

// mergeWithOverlapRemoval concatenates texts in order, dropping the
// duplicated prefix of each subsequent chunk that overlaps the tail of the
// merge-so-far (spec §4.6 step 2-3).
func mergeWithOverlapRemoval(texts []string) string {
	if len(texts) == 1 {
		return texts[0]
	}

	merged := texts[0]
	for i := 1; i < len(texts); i++ {
		current := texts[i]
		if n := findOverlap(merged, current); n > 0 {
			current = current[n:]
		}
		if merged != "" && current != "" && !strings.HasSuffix(merged, " ") && !strings.HasPrefix(current, " ") {
			merged += " "
		}
		merged += current
	}
	return merged
}

// findOverlap returns the longest L in [minOverlap, min(len(a), len(b),
// maxOverlap)] such that a's last L bytes case-insensitively equal b's
// first L bytes, or 0 if no such L exists (spec §4.6 step 2).
func findOverlap(a, b string) int {
	limit := min3(len(a), len(b), maxOverlap)
	for l := limit; l >= minOverlap; l-- {
		if strings.EqualFold(a[len(a)-l:], b[:l]) {
			return l
		}
	}
	return 0
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// finalCleanup normalizes whitespace and punctuation spacing, then
// capitalizes the first character (spec §4.6 step 4).
func finalCleanup(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = punctNoSpaceAfter.ReplaceAllString(text, "$1 $2")
	text = spaceBeforeCloser.ReplaceAllString(text, "$1")
	text = openerTrailingWS.ReplaceAllString(text, "$1 ")
	text = repeatedTerminator.ReplaceAllString(text, "$1$2$3")
	text = strings.TrimSpace(text)

	if text == "" {
		return text
	}
	r := []rune(text)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
