// Package chunker splits raw text into bounded-size, semantically coherent
// segments suitable for embedding. Splitting prefers sentence boundaries and
// degrades to word-level packing when a single sentence exceeds the limit.
package chunker

import "strings"

// DefaultMaxChunkSize keeps chunks safely under embedding model input limits
// while minimizing the number of embedding calls.
const DefaultMaxChunkSize = 8000

// sentenceTerminators are the characters that end a sentence.
const sentenceTerminators = ".!?"

// Split segments text into chunks of at most maxChunkSize characters.
//
// Sentences are accumulated greedily and joined with ". "; when adding the
// next sentence would overflow the limit, the running buffer is flushed as a
// chunk. A sentence that alone exceeds the limit is packed word by word. A
// single word longer than maxChunkSize is emitted unmodified rather than
// truncated: no input text is ever dropped.
//
// Empty or whitespace-only input yields no chunks. Input validation is the
// caller's responsibility.
func Split(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range splitSentences(text) {
		// The join below costs len(". ") == 2 characters.
		if current.Len()+len(sentence)+2 > maxChunkSize {
			if current.Len() > 0 {
				chunks = appendChunk(chunks, current.String())
				current.Reset()
			}
			if len(sentence) > maxChunkSize {
				// Single sentence exceeds the limit: fall back to words.
				chunks = packWords(chunks, sentence, maxChunkSize)
			} else {
				current.WriteString(sentence)
			}
		} else {
			if current.Len() > 0 {
				current.WriteString(". ")
			}
			current.WriteString(sentence)
		}
	}

	if current.Len() > 0 {
		chunks = appendChunk(chunks, current.String())
	}

	return chunks
}

// splitSentences breaks text on sentence-terminal punctuation and discards
// empty segments.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(sentenceTerminators, r)
	})

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// packWords greedily packs the words of an oversized sentence into chunks.
func packWords(chunks []string, sentence string, maxChunkSize int) []string {
	var buf strings.Builder

	for _, word := range strings.Fields(sentence) {
		if buf.Len()+len(word)+1 > maxChunkSize {
			if buf.Len() > 0 {
				chunks = appendChunk(chunks, buf.String())
				buf.Reset()
				buf.WriteString(word)
			} else {
				// A lone word longer than the limit is kept whole.
				chunks = append(chunks, word)
			}
		} else {
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(word)
		}
	}

	if buf.Len() > 0 {
		chunks = appendChunk(chunks, buf.String())
	}
	return chunks
}

func appendChunk(chunks []string, chunk string) []string {
	if c := strings.TrimSpace(chunk); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}
