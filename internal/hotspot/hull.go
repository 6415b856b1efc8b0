package hotspot

import (
	"sort"

	"github.com/paulmach/orb"
)

// convexHull returns the closed, counter-clockwise hull ring of pts using
// Andrew's monotone chain. Collinear boundary points are dropped. A hull
// with fewer than three vertices is reported as ErrDegenerateHull.
func convexHull(pts []orb.Point) (orb.Ring, error) {
	ps := make([]orb.Point, len(pts))
	copy(ps, pts)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i][0] != ps[j][0] {
			return ps[i][0] < ps[j][0]
		}
		return ps[i][1] < ps[j][1]
	})
	ps = dedupe(ps)
	if len(ps) < 3 {
		return nil, ErrDegenerateHull
	}

	hull := make([]orb.Point, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// The last point repeats the first, which closes the ring.
	if len(hull)-1 < 3 {
		return nil, ErrDegenerateHull
	}
	return orb.Ring(hull), nil
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func dedupe(sorted []orb.Point) []orb.Point {
	out := sorted[:0]
	for _, p := range sorted {
		if len(out) > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
