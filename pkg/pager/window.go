package pager

// Window returns the inclusive bounds of [center-radius, center+radius]
// clipped to [0, n). The window is empty when hi < lo.
func Window(center, radius, n int) (lo, hi int) {
	if n <= 0 {
		return 0, -1
	}
	if radius < 0 {
		radius = 0
	}
	lo, hi = center-radius, center+radius
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}
