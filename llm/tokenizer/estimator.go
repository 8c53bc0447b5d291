package tokenizer

import (
	"unicode/utf8"
)

// EstimatorTokenizer is a character-count-based token estimator.
// CJK runes count ~1.5 per token, everything else ~4 per token.
type EstimatorTokenizer struct{}

// NewEstimatorTokenizer creates a generic estimator.
func NewEstimatorTokenizer() *EstimatorTokenizer {
	return &EstimatorTokenizer{}
}

func runeWeight(r rune) float64 {
	if isCJK(r) {
		return 1 / 1.5
	}
	return 1 / 4.0
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var est float64
	for _, r := range text {
		est += runeWeight(r)
	}
	if est < 1 {
		return 1, nil
	}
	return int(est), nil
}

func (e *EstimatorTokenizer) Truncate(text string, maxTokens int) (string, bool, error) {
	if maxTokens <= 0 {
		return text, false, nil
	}
	n, _ := e.CountTokens(text)
	if n <= maxTokens {
		return text, false, nil
	}
	var (
		est float64
		cut int
	)
	for cut < len(text) {
		r, size := utf8.DecodeRuneInString(text[cut:])
		w := runeWeight(r)
		if est+w > float64(maxTokens) {
			break
		}
		est += w
		cut += size
	}
	return text[:cut] + TruncationMarker, true, nil
}

func (e *EstimatorTokenizer) Name() string {
	return "estimator"
}

// isCJK returns true if the rune is a CJK character.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
