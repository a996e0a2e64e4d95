package stream

// A single UNIFORM_SCALING request may move a stream from n shards to any
// count in [ceil(n/2), 2n].

// LegalRange returns the shard counts reachable from n in one request.
func LegalRange(n int32) (lo, hi int32) {
	return (n + 1) / 2, 2 * n
}

// NextHop returns the count to request next when moving from n toward
// target, taking the largest legal step.
func NextHop(n, target int32) int32 {
	lo, hi := LegalRange(n)
	switch {
	case target < lo:
		return lo
	case target > hi:
		return hi
	default:
		return target
	}
}

// Plan returns every intermediate count from n to target, target included.
// It is empty when n == target or either count is below 1.
func Plan(n, target int32) []int32 {
	if n < 1 || target < 1 {
		return nil
	}
	var hops []int32
	for n != target {
		n = NextHop(n, target)
		hops = append(hops, n)
	}
	return hops
}
