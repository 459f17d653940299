package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoteFilter_MasksBlockedWords(t *testing.T) {
	req := require.New(t)
	filter, err := NewNoteFilter([]string{"idiot", "scam"}, '*')
	req.NoError(err)

	req.Equal("the chef is an *****", filter.Clean("the chef is an idiot"))
	req.Equal("this **** again", filter.Clean("this scam again"))
}

func TestNoteFilter_IsCaseAndSpacingInsensitive(t *testing.T) {
	req := require.New(t)
	filter, err := NewNoteFilter([]string{"idiot"}, '*')
	req.NoError(err)

	// Case changes and inserted punctuation do not evade the mask
	req.Equal("*****", filter.Clean("IdIoT"))
	req.Equal("*********", filter.Clean("i.d-i o.t"))
}

func TestNoteFilter_LeavesCleanNotesAlone(t *testing.T) {
	req := require.New(t)
	filter, err := NewNoteFilter([]string{"idiot"}, '*')
	req.NoError(err)

	note := "no onions please, allergy at the table"
	req.Equal(note, filter.Clean(note))
	req.Equal("", filter.Clean(""))
}

func TestNoteFilter_EmptyBlockListPassesThrough(t *testing.T) {
	req := require.New(t)
	filter, err := NewNoteFilter(nil, '*')
	req.NoError(err)

	req.Equal("anything goes", filter.Clean("anything goes"))
}
