// Package batch splits flat collections into fixed-size chunks.
package batch

// Slice partitions items into consecutive chunks of at most size elements.
// The last chunk may be shorter. Order is preserved within and across
// chunks and the chunks alias the original backing array. An empty input
// yields nil.
func Slice[T any](items []T, size int) [][]T {
	if size < 1 {
		panic("batch: chunk size must be positive")
	}

	var chunks [][]T

	for len(items) > size {
		chunks = append(chunks, items[:size:size])
		items = items[size:]
	}

	if len(items) > 0 {
		chunks = append(chunks, items)
	}

	return chunks
}
