// Package spatialindex implements hierarchical greedy point clustering
// with one quadtree per zoom level.
package spatialindex

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"github.com/jobrunner/clustermap/internal/domain"
)

// unvisited marks a node not yet claimed on any level.
const unvisited = math.MaxInt

var worldBound = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

// node is a point or cluster in projected coordinates. Nodes that are not
// merged are shared between consecutive levels.
type node struct {
	x, y      float64
	zoom      int // lowest zoom that has claimed the node
	numPoints int
	point     int // index into Index.points for leaves, -1 for clusters

	id       domain.ClusterID
	origin   int // zoom at which the cluster was formed
	children []*node
}

func (n *node) isCluster() bool {
	return n.point < 0
}

// entry is a node of one level, numbered in level order.
type entry struct {
	node  *node
	order int
}

// cell holds the entries sharing one projected position. The quadtree
// stores cells so that coincident nodes do not deepen the tree.
type cell struct {
	at      orb.Point
	entries []*entry
}

// Point implements orb.Pointer.
func (c *cell) Point() orb.Point {
	return c.at
}

type level struct {
	zoom    int
	entries []*entry
	cells   int
	tree    *quadtree.Quadtree
}

func newLevel(zoom int, nodes []*node) (*level, error) {
	l := &level{
		zoom:    zoom,
		entries: make([]*entry, len(nodes)),
		tree:    quadtree.New(worldBound),
	}
	cells := make(map[orb.Point]*cell, len(nodes))
	for i, n := range nodes {
		e := &entry{node: n, order: i}
		l.entries[i] = e

		at := orb.Point{n.x, n.y}
		c, ok := cells[at]
		if !ok {
			c = &cell{at: at}
			if err := l.tree.Add(c); err != nil {
				return nil, fmt.Errorf("adding node at (%f, %f) to zoom %d: %w", n.x, n.y, zoom, err)
			}
			cells[at] = c
		}
		c.entries = append(c.entries, e)
	}
	l.cells = len(cells)
	return l, nil
}

// collect appends the entries of the cells inside b to dst, keeping
// those accepted by keep. scratch is reused for the quadtree hits.
func (l *level) collect(dst []*entry, scratch []orb.Pointer, b orb.Bound, keep func(*entry) bool) ([]*entry, []orb.Pointer) {
	scratch = l.tree.InBound(scratch[:0], b)
	for _, h := range scratch {
		for _, e := range h.(*cell).entries {
			if keep == nil || keep(e) {
				dst = append(dst, e)
			}
		}
	}
	return dst, scratch
}

func sortEntries(entries []*entry) {
	slices.SortFunc(entries, func(a, b *entry) int {
		return cmp.Compare(a.order, b.order)
	})
}

// Index is an immutable clustering index.
type Index struct {
	opts     domain.ClusterOptions
	points   []domain.Point
	levels   []*level // levels[z-MinZoom] for z in [MinZoom, MaxZoom+1]
	clusters map[domain.ClusterID]*node
	skipped  int
	lastID   domain.ClusterID
}

// Options returns the options the index was built with.
func (idx *Index) Options() domain.ClusterOptions {
	return idx.opts
}

// Size returns the number of indexed points.
func (idx *Index) Size() int {
	return len(idx.points)
}

// Skipped returns the number of points dropped for invalid coordinates.
func (idx *Index) Skipped() int {
	return idx.skipped
}

// Query returns the features inside bbox at zoom. Below MinZoom and above
// MaxZoom every point is returned unclustered.
func (idx *Index) Query(bbox domain.BoundingBox, zoom int) []domain.Feature {
	if !bbox.IsValid() {
		return []domain.Feature{}
	}
	lvl := idx.levelFor(zoom)

	minY := latY(bbox.North)
	maxY := latY(bbox.South)

	var (
		hits    []*entry
		scratch []orb.Pointer
	)
	if bbox.East-bbox.West >= 360 {
		hits, _ = lvl.collect(hits, scratch, orb.Bound{Min: orb.Point{0, minY}, Max: orb.Point{1, maxY}}, nil)
	} else {
		west := domain.NormalizeLongitude(bbox.West)
		east := domain.NormalizeLongitude(bbox.East)
		if west > east {
			hits, scratch = lvl.collect(hits, scratch, orb.Bound{Min: orb.Point{lngX(west), minY}, Max: orb.Point{1, maxY}}, nil)
			hits, _ = lvl.collect(hits, scratch, orb.Bound{Min: orb.Point{0, minY}, Max: orb.Point{lngX(east), maxY}}, nil)
		} else {
			hits, _ = lvl.collect(hits, scratch, orb.Bound{Min: orb.Point{lngX(west), minY}, Max: orb.Point{lngX(east), maxY}}, nil)
		}
	}
	sortEntries(hits)

	features := make([]domain.Feature, 0, len(hits))
	for _, e := range hits {
		features = append(features, idx.feature(e.node))
	}
	return features
}

// Children returns the nodes merged into a cluster, one zoom below the
// level where it was formed.
func (idx *Index) Children(id domain.ClusterID) ([]domain.Feature, error) {
	c, ok := idx.clusters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrClusterNotFound, id)
	}
	features := make([]domain.Feature, 0, len(c.children))
	for _, n := range c.children {
		features = append(features, idx.feature(n))
	}
	return features, nil
}

// Leaves returns up to limit points below a cluster, skipping offset.
// A non-positive limit returns all remaining points.
func (idx *Index) Leaves(id domain.ClusterID, limit, offset int) ([]domain.Point, error) {
	c, ok := idx.clusters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrClusterNotFound, id)
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = c.numPoints
	}

	leaves := make([]domain.Point, 0, min(limit, c.numPoints))
	skipped := 0
	var walk func(n *node) bool
	walk = func(n *node) bool {
		for _, child := range n.children {
			if child.isCluster() {
				if skipped+child.numPoints <= offset {
					skipped += child.numPoints
					continue
				}
				if walk(child) {
					return true
				}
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			leaves = append(leaves, idx.points[child.point])
			if len(leaves) == limit {
				return true
			}
		}
		return false
	}
	walk(c)
	return leaves, nil
}

// ExpansionZoom returns the zoom at which a cluster splits into its children.
func (idx *Index) ExpansionZoom(id domain.ClusterID) (int, error) {
	c, ok := idx.clusters[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", domain.ErrClusterNotFound, id)
	}
	return c.origin + 1, nil
}

func (idx *Index) levelFor(zoom int) *level {
	if zoom < idx.opts.MinZoom || zoom > idx.opts.MaxZoom {
		return idx.levels[len(idx.levels)-1]
	}
	return idx.levels[zoom-idx.opts.MinZoom]
}

func (idx *Index) feature(n *node) domain.Feature {
	if !n.isCluster() {
		return domain.PointFeature{Point: idx.points[n.point]}
	}
	return domain.ClusterFeature{
		ID:         n.id,
		Center:     unproject(n.x, n.y),
		PointCount: n.numPoints,
	}
}
