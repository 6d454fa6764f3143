// Package primes implements the stand-in workload: enumerating primes over a
// numeric range. The only property the rest of the system relies on is that
// the work is embarrassingly parallel over sub-ranges.
package primes

// IsPrime reports whether n is prime by trial division.
func IsPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n == 2 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	for i := int64(3); i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// FindInRange returns all primes in the closed interval [start, end], in
// ascending order. An empty interval (start > end) yields no values.
func FindInRange(start, end int64) []int64 {
	var out []int64
	for n := start; n <= end; n++ {
		if IsPrime(n) {
			out = append(out, n)
		}
	}
	return out
}
