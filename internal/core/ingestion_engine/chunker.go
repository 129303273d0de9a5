package ingestion_engine

import (
	"regexp"
	"strings"
	"unicode"
)

// Chunking defaults, sized for embedding and context limits.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// cjkPattern covers CJK Unified Ideographs (+ext A), CJK punctuation,
// fullwidth forms, Hiragana, Katakana and Hangul.
var cjkPattern = regexp.MustCompile(`[\x{4e00}-\x{9fff}\x{3400}-\x{4dbf}\x{3000}-\x{303f}\x{ff00}-\x{ffef}\x{3040}-\x{309f}\x{30a0}-\x{30ff}\x{ac00}-\x{d7af}]`)

// SplitText splits text into overlapping chunks of at most roughly
// maxChunkSize runes. Sentences are accumulated greedily; when the next
// sentence would overflow a non-empty buffer, the buffer is flushed and the
// next chunk is seeded with an overlap taken from the flushed text: the
// last `overlap` runes for CJK text, the last `overlap` space-delimited
// words otherwise. Deterministic for identical input.
func SplitText(text string, maxChunkSize, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	sentences := splitSentences(text)
	isCJK := cjkPattern.MatchString(text)

	var chunks []string
	var current string

	for _, sentence := range sentences {
		if runeLen(current)+runeLen(sentence) > maxChunkSize && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			if isCJK {
				current = lastRunes(current, overlap) + sentence
			} else {
				words := strings.Split(current, " ")
				if len(words) > overlap {
					words = words[len(words)-overlap:]
				}
				current = strings.Join(words, " ") + " " + sentence
			}
			continue
		}
		if current == "" {
			current = sentence
		} else if isCJK {
			current += sentence
		} else {
			current += " " + sentence
		}
	}

	if tail := strings.TrimSpace(current); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// splitSentences cuts text into sentence-like units after `.`, `!`, `?`,
// their CJK equivalents and newlines. The boundary rune stays with the
// preceding sentence; whitespace following a boundary is dropped.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); {
		if !isSentenceBoundary(runes[i]) {
			i++
			continue
		}
		end := i + 1
		j := end
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		out = append(out, string(runes[start:end]))
		start = j
		i = j
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isSentenceBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '\n':
		return true
	}
	return false
}

func runeLen(s string) int {
	return len([]rune(s))
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
