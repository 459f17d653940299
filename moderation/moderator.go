// Package moderation censors free-text guests type into order notes and
// table notifications before anything is persisted or broadcast to staff
// screens.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// NoteFilter masks blocked words in guest text. Matching is done on a
// normalized view (lowercase, punctuation and spacing stripped) so trivial
// obfuscation does not slip through, while the replacement is applied to
// the original runes to preserve the note's layout.
type NoteFilter struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// NewNoteFilter builds the Aho-Corasick automaton over the normalized block
// list. An empty list yields a filter that passes everything through.
func NewNoteFilter(blocked []string, replacement rune) (*NoteFilter, error) {
	if len(blocked) == 0 {
		return &NoteFilter{replacement: replacement}, nil
	}
	patterns := make([][]rune, 0, len(blocked))
	for _, word := range blocked {
		normalized, _ := normalize([]rune(word))
		if len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &NoteFilter{matcher: m, replacement: replacement}, nil
}

// Clean returns the note with every blocked span masked.
func (f *NoteFilter) Clean(note string) string {
	if f.matcher == nil || note == "" {
		return note
	}

	original := []rune(note)
	normalized, origIdx := normalize(original)
	if len(normalized) == 0 {
		return note
	}

	spans := f.matcher.MultiPatternSearch(normalized, false)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			original[i] = f.replacement
		}
	}
	return string(original)
}

// normalize lowercases the input and drops punctuation, spacing and
// symbols, keeping a mapping back to the original rune positions.
func normalize(input []rune) ([]rune, []int) {
	normalized := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return normalized, origIdx
}
