package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into overlapping chunks of at most ChunkSize characters,
// preferring to break on the coarsest separator that occurs in the text.
// Each separator stays attached to the start of the piece that follows it.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter returns a Splitter using DefaultSeparators.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, Separators: DefaultSeparators}
}

// Chunk is one piece of the document as stored in the index.
type Chunk struct {
	Page    int
	Ordinal int
	Text    string
}

// SplitPages splits every page on its own. Ordinals number the chunks across
// the whole document in reading order.
func (s *Splitter) SplitPages(pages []Page) []Chunk {
	var chunks []Chunk
	for _, p := range pages {
		for _, text := range s.Split(p.Text) {
			chunks = append(chunks, Chunk{Page: p.Number, Ordinal: len(chunks), Text: text})
		}
	}
	return chunks
}

// Split returns the chunks of text. The output is a pure function of the
// input and the splitter parameters.
func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, c := range seps {
		if c == "" {
			sep = c
			break
		}
		if strings.Contains(text, c) {
			sep = c
			rest = seps[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, sep) {
		if utf8.RuneCountInString(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge packs consecutive pieces into chunks no longer than ChunkSize, carrying
// up to ChunkOverlap characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	for _, d := range pieces {
		n := utf8.RuneCountInString(d)
		if total+n > s.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, d)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepingSeparator splits text on sep, prefixing every piece after the
// first with sep. Empty pieces are dropped. An empty sep splits into runes.
func splitKeepingSeparator(text, sep string) []string {
	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	for i, part := range strings.Split(text, sep) {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}
