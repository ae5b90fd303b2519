// Package verse handles the reference text being memorized: word
// normalization and scoring of a transcribed recitation against it.
package verse

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Verse is the passage being practiced.
type Verse struct {
	Reference string // e.g. "John 3:16"
	Text      string
}

// LoadFile reads a reference text from disk. A first line ending in ':'
// or of the form "Book 1:2" style short header separated by a blank line is
// not special-cased; the whole file is the text.
func LoadFile(path string) (Verse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Verse{}, fmt.Errorf("reading reference text: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Verse{}, fmt.Errorf("reference text file %s is empty", path)
	}
	return Verse{Text: text}, nil
}

// Words splits text into normalized comparison tokens: lowercased, with
// punctuation stripped. Apostrophes inside a word survive ("Lord's").
func Words(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		words = append(words, strings.ToLower(f))
	}
	return words
}

// Score measures how much of the reference text a recitation got right.
type Score struct {
	Matched int // reference words present in order in the recitation
	Total   int // reference words
}

// Accuracy is Matched/Total in [0,1]; an empty reference scores 0.
func (s Score) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Total)
}

// Grade aligns the spoken words against the reference with a longest
// common subsequence, so skipped or inserted words only cost what they
// miss rather than shifting everything after them.
func Grade(referenceText, spoken string) Score {
	ref := Words(referenceText)
	got := Words(spoken)

	if len(ref) == 0 {
		return Score{}
	}
	if len(got) == 0 {
		return Score{Total: len(ref)}
	}

	// LCS over two word slices, rolling single row.
	prev := make([]int, len(got)+1)
	curr := make([]int, len(got)+1)
	for i := 1; i <= len(ref); i++ {
		for j := 1; j <= len(got); j++ {
			if ref[i-1] == got[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return Score{Matched: prev[len(got)], Total: len(ref)}
}
