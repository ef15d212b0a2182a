package parser

import (
	"strings"

	"document-assistant/internal/models"
)

const paragraphSeparator = "\n\n"

// Chunk splits text according to strategy. Sizes are measured in characters
// (runes), not bytes.
func Chunk(text, strategy string, size int) ([]string, error) {
	if size <= 0 {
		return nil, models.NewValidation(models.CodeInvalidChunkSize, "chunk size must be positive, got %d", size)
	}
	switch strategy {
	case models.StrategyFixed:
		return ChunkFixed(text, size), nil
	case models.StrategySemantic:
		return ChunkSemantic(text, size), nil
	default:
		return nil, models.NewValidation(models.CodeInvalidStrategy, "unknown chunking strategy: %s", strategy)
	}
}

// ChunkFixed cuts text into consecutive windows of size runes; only the last
// window may be shorter.
func ChunkFixed(text string, size int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// ChunkSemantic greedily packs blank-line separated paragraphs, joined by a
// single space, into chunks of at most size runes. A paragraph longer than
// size is flushed as its own fixed windows.
func ChunkSemantic(text string, size int) []string {
	if size <= 0 {
		return nil
	}

	var (
		chunks     []string
		current    strings.Builder
		currentLen int
	)
	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, raw := range strings.Split(text, paragraphSeparator) {
		para := strings.TrimSpace(raw)
		if para == "" {
			continue
		}
		paraLen := len([]rune(para))

		if currentLen+paraLen+1 <= size {
			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++
			}
			current.WriteString(para)
			currentLen += paraLen
			continue
		}

		flush()
		if paraLen > size {
			chunks = append(chunks, ChunkFixed(para, size)...)
			continue
		}
		current.WriteString(para)
		currentLen = paraLen
	}
	flush()
	return chunks
}
