package hotspot

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

const noise = -1

// indexedPoint lets the quadtree hand back the caller's slice index.
type indexedPoint struct {
	p orb.Point
	i int
}

func (ip indexedPoint) Point() orb.Point { return ip.p }

// neighbourIndex answers fixed-radius queries over a set of points.
type neighbourIndex struct {
	qt  *quadtree.Quadtree
	pts []orb.Point
	eps float64
	buf []orb.Pointer
}

func newNeighbourIndex(pts []orb.Point, eps float64) *neighbourIndex {
	bound := orb.MultiPoint(pts).Bound()
	qt := quadtree.New(bound)
	for i, p := range pts {
		// Every point lies in its own bound, so Add cannot fail.
		_ = qt.Add(indexedPoint{p: p, i: i})
	}
	return &neighbourIndex{qt: qt, pts: pts, eps: eps}
}

// within returns the sorted indices of points whose distance to pts[i] is
// at most eps, including i itself.
func (n *neighbourIndex) within(i int) []int {
	c := n.pts[i]
	box := orb.Bound{
		Min: orb.Point{c[0] - n.eps, c[1] - n.eps},
		Max: orb.Point{c[0] + n.eps, c[1] + n.eps},
	}
	n.buf = n.qt.InBound(n.buf[:0], box)

	eps2 := n.eps * n.eps
	out := make([]int, 0, len(n.buf))
	for _, ptr := range n.buf {
		ip := ptr.(indexedPoint)
		dx := ip.p[0] - c[0]
		dy := ip.p[1] - c[1]
		if dx*dx+dy*dy <= eps2 {
			out = append(out, ip.i)
		}
	}
	sort.Ints(out)
	return out
}

// dbscan labels each point with a cluster id in [0, k) or noise (-1).
// Clusters are numbered in the order their first core point appears.
// It returns the labels and the number of clusters.
//
// Neighbourhoods are queried when a point is visited and dropped after its
// expansion, so memory stays linear in len(pts) whatever the radius.
func dbscan(pts []orb.Point, eps float64, minPoints int) ([]int, int) {
	labels := make([]int, len(pts))
	for i := range labels {
		labels[i] = noise
	}
	if len(pts) == 0 {
		return labels, 0
	}

	idx := newNeighbourIndex(pts, eps)
	k := 0
	var stack []int
	for i := range pts {
		if labels[i] != noise {
			continue
		}
		nb := idx.within(i)
		if len(nb) < minPoints {
			continue
		}
		labels[i] = k
		for {
			for _, v := range nb {
				if labels[v] != noise {
					continue
				}
				labels[v] = k
				stack = append(stack, v)
			}
			if len(stack) == 0 {
				break
			}
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			// Border points join the cluster but do not extend it.
			if nb = idx.within(j); len(nb) < minPoints {
				nb = nil
			}
		}
		k++
	}
	return labels, k
}
