package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Chunker packs whole sentences into chunks of at most size characters and
// carries trailing sentences totalling at most overlap characters into the
// next chunk. A single sentence longer than size becomes its own chunk.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk returns NFC-normalized chunks, so composed and decomposed spellings
// of the same text embed identically.
func (c *Chunker) Chunk(text string) []string {
	text = norm.NFC.String(strings.TrimSpace(text))
	sentences := splitSentences(whitespaceRun.ReplaceAllString(text, " "))
	var chunks []string
	i := 0
	for i < len(sentences) {
		var current []string
		size := 0
		for _, sentence := range sentences[i:] {
			addition := len(sentence)
			if len(current) > 0 {
				addition++
			}
			if size+addition > c.size && len(current) > 0 {
				break
			}
			current = append(current, sentence)
			size += addition
		}
		chunks = append(chunks, strings.Join(current, " "))
		if i+len(current) >= len(sentences) {
			break
		}

		carried := c.overlapCount(current)
		next := i + len(current) - carried
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return chunks
}

// overlapCount returns how many trailing sentences of chunk fit the overlap.
func (c *Chunker) overlapCount(chunk []string) int {
	if c.overlap == 0 {
		return 0
	}
	total, count := 0, 0
	for k := len(chunk) - 1; k >= 0; k-- {
		length := len(chunk[k])
		if k < len(chunk)-1 {
			length++
		}
		if total+length > c.overlap {
			break
		}
		total += length
		count++
	}
	return count
}

// splitSentences breaks text after '.', '!' or '?' when whitespace and an
// upper-case letter follow. Abbreviations such as "e.g." or "Dr." do not end
// a sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || i == 0 {
			continue
		}
		prev := runes[i-1]
		if prev != '.' && prev != '!' && prev != '?' {
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j >= len(runes) || !unicode.IsUpper(runes[j]) {
			continue
		}
		if prev == '.' && isAbbreviation(runes[start:i]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:i])); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// isAbbreviation reports whether the text before a period ends like "e.g."
// (letter, dot, letter, dot) or "Mr." (capital then lower-case letter).
func isAbbreviation(before []rune) bool {
	n := len(before)
	if n >= 4 && isWord(before[n-4]) && before[n-3] == '.' && isWord(before[n-2]) {
		return true
	}
	if n >= 3 && unicode.IsUpper(before[n-3]) && unicode.IsLower(before[n-2]) {
		if n == 3 || !isWord(before[n-4]) {
			return true
		}
	}
	return false
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
