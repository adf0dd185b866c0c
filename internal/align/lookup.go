package align

// ClosestIndex returns the index of the timestamp in the ascending slice ts
// nearest to q. On an exact tie between the two straddling entries the
// earlier one wins. It returns -1 for an empty slice.
func ClosestIndex(ts []int64, q int64) int {
	if len(ts) == 0 {
		return -1
	}
	lo, hi := 0, len(ts)-1
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if ts[mid] < q {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	prev := lo - 1
	if q-ts[prev] <= ts[lo]-q {
		return prev
	}
	return lo
}
