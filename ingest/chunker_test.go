package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker_Validation(t *testing.T) {
	_, err := NewChunker(0, 0)
	require.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = NewChunker(100, 100)
	require.ErrorIs(t, err, ErrInvalidOverlap)

	_, err = NewChunker(100, -1)
	require.ErrorIs(t, err, ErrInvalidOverlap)
}

func TestSplit_ShortTextSinglePiece(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	pieces := c.Split("a short document")
	require.Len(t, pieces, 1)
	assert.Equal(t, "a short document", pieces[0].Text)
	assert.Equal(t, 0, pieces[0].Offset)
}

func TestSplit_EmptyAndWhitespace(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestSplit_SnapsToWordBoundaries(t *testing.T) {
	c, err := NewChunker(20, 5)
	require.NoError(t, err)

	text := "alpha bravo charlie delta echo foxtrot golf hotel"
	pieces := c.Split(text)
	require.Greater(t, len(pieces), 1)

	words := strings.Fields(text)
	for _, piece := range pieces {
		for _, w := range strings.Fields(piece.Text) {
			assert.Contains(t, words, w, "no word may be cut mid-way")
		}
	}
}

func TestSplit_OverlapCoversEveryRune(t *testing.T) {
	c, err := NewChunker(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	pieces := c.Split(text)
	require.Greater(t, len(pieces), 1)

	// Adjacent pieces must tile the text with no gap.
	for i := 1; i < len(pieces); i++ {
		prevEnd := pieces[i-1].Offset + utf8.RuneCountInString(pieces[i-1].Text)
		assert.LessOrEqual(t, pieces[i].Offset, prevEnd, "pieces %d and %d leave a gap", i-1, i)
	}
}

func TestSplit_NoWhitespaceHardCut(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	pieces := c.Split(strings.Repeat("x", 25))
	require.NotEmpty(t, pieces)
	for _, piece := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(piece.Text), 10)
	}
}

func TestSplit_OffsetsIndexOriginalText(t *testing.T) {
	c, err := NewChunker(30, 5)
	require.NoError(t, err)

	text := "one two three four five six seven eight nine ten eleven twelve"
	runes := []rune(text)
	for _, piece := range c.Split(text) {
		got := string(runes[piece.Offset : piece.Offset+utf8.RuneCountInString(piece.Text)])
		assert.Equal(t, piece.Text, got)
	}
}
