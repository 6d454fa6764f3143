// Package chunk partitions a closed numeric interval into contiguous,
// gap-free sub-intervals and runs one isolated worker process per chunk.
package chunk

import "fmt"

// Chunk is a closed sub-interval [Start, End] with an identifying label.
// A chunk with Start > End is empty; consumers skip it rather than treat it
// as an error.
type Chunk struct {
	Label string
	Start int64
	End   int64
}

// Empty reports whether the chunk covers no values.
func (c Chunk) Empty() bool {
	return c.Start > c.End
}

// Size returns the number of values the chunk covers.
func (c Chunk) Size() int64 {
	if c.Empty() {
		return 0
	}
	return c.End - c.Start + 1
}

// Split partitions [start, end] into n contiguous chunks using floor-division
// sizing; the final chunk absorbs the remainder. The union of the returned
// chunks covers the range exactly, with no gap and no overlap. When n exceeds
// the range size the leading chunks come back empty and the final chunk
// carries the whole range.
func Split(start, end int64, n int) ([]Chunk, error) {
	if start > end {
		return nil, fmt.Errorf("invalid range: start %d > end %d", start, end)
	}
	if n < 1 {
		return nil, fmt.Errorf("chunk count must be at least 1, got %d", n)
	}

	total := end - start + 1
	size := total / int64(n)

	chunks := make([]Chunk, n)
	s := start
	for i := 0; i < n; i++ {
		e := s + size - 1
		if i == n-1 {
			e = end
		}
		chunks[i] = Chunk{
			Label: fmt.Sprintf("chunk_%d", i+1),
			Start: s,
			End:   e,
		}
		s = e + 1
	}
	return chunks, nil
}

// SplitForRank computes the sub-interval a single worker covers when a range
// is divided across size workers, remainder spread over the leading ranks.
// This mirrors the distribution the remote per-rank workload uses, so that a
// submitted job and a local run partition identically.
func SplitForRank(start, end int64, rank, size int) Chunk {
	total := end - start + 1
	base := total / int64(size)
	remainder := total % int64(size)

	var s, e int64
	if int64(rank) < remainder {
		s = start + int64(rank)*(base+1)
		e = s + base
	} else {
		s = start + remainder*(base+1) + (int64(rank)-remainder)*base
		e = s + base - 1
	}
	if e > end {
		e = end
	}
	return Chunk{Label: fmt.Sprintf("rank_%d", rank), Start: s, End: e}
}
