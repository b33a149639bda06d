// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import (
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the default chunk size in runes.
	DefaultChunkSize = 1000
	// DefaultOverlap is the default overlap between adjacent chunks in runes.
	DefaultOverlap = 200
)

// Piece is one chunk of a split document with its rune offset in the
// original text.
type Piece struct {
	Offset int
	Text   string
}

// Chunker splits document text into overlapping pieces. Boundaries snap back
// to whitespace so words are not cut mid-way; a window with no whitespace at
// all is cut hard at the size limit.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given size and overlap, in runes.
// Overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 || overlap >= size {
		return nil, ErrInvalidOverlap
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split splits text into pieces. Whitespace-only pieces are dropped; the
// returned offsets index into text by rune.
func (c *Chunker) Split(text string) []Piece {
	runes := []rune(text)
	var pieces []Piece

	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Snap back to the last whitespace inside the window.
			snapped := end
			for i := end; i > start; i-- {
				if unicode.IsSpace(runes[i-1]) {
					snapped = i
					break
				}
			}
			if snapped > start {
				end = snapped
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			// Offset points at the first non-space rune of the piece.
			offset := start
			for offset < end && unicode.IsSpace(runes[offset]) {
				offset++
			}
			pieces = append(pieces, Piece{Offset: offset, Text: piece})
		}

		if end == len(runes) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		} else {
			// Snap forward so the overlapping piece starts on a word
			// boundary rather than mid-word.
			for next < end && !unicode.IsSpace(runes[next-1]) {
				next++
			}
		}
		start = next
	}

	return pieces
}
