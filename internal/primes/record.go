package primes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Record is the per-worker result of one sub-range, written as a single line:
//
//	Rank=0, Node=host1, subrange=[1..10], found=4, Primes=[2, 3, 5, 7]
//
// The Primes list may be empty. Both the local chunk runner and the remote
// per-rank worker emit this grammar, so the aggregator reads one format.
type Record struct {
	Rank   int
	Node   string
	Start  int64
	End    int64
	Primes []int64
}

// Count returns the number of primes found.
func (r *Record) Count() int {
	return len(r.Primes)
}

// String renders the record in its single-line wire form.
func (r *Record) String() string {
	vals := make([]string, len(r.Primes))
	for i, p := range r.Primes {
		vals[i] = strconv.FormatInt(p, 10)
	}
	return fmt.Sprintf("Rank=%d, Node=%s, subrange=[%d..%d], found=%d, Primes=[%s]",
		r.Rank, r.Node, r.Start, r.End, len(r.Primes), strings.Join(vals, ", "))
}

var recordRe = regexp.MustCompile(`^Rank=(\d+), Node=([^,]*), subrange=\[(-?\d+)\.\.(-?\d+)\], found=(\d+), Primes=\[(.*)\]$`)

// ParseRecord parses a single result line back into a Record. The found=
// field must agree with the number of listed primes.
func ParseRecord(line string) (*Record, error) {
	m := recordRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return nil, fmt.Errorf("malformed result record: %q", line)
	}

	rank, _ := strconv.Atoi(m[1])
	start, _ := strconv.ParseInt(m[3], 10, 64)
	end, _ := strconv.ParseInt(m[4], 10, 64)
	count, _ := strconv.Atoi(m[5])

	var vals []int64
	if m[6] != "" {
		for _, field := range strings.Split(m[6], ",") {
			v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed prime value in record: %q", field)
			}
			vals = append(vals, v)
		}
	}
	if count != len(vals) {
		return nil, fmt.Errorf("record count mismatch: found=%d but %d values listed", count, len(vals))
	}

	return &Record{Rank: rank, Node: m[2], Start: start, End: end, Primes: vals}, nil
}
