package spatialindex

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// Builder builds clustering indices.
type Builder struct{}

// NewBuilder creates a new index builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build implements output.IndexBuilder.
func (b *Builder) Build(points []domain.Point, opts domain.ClusterOptions) (output.SpatialIndex, error) {
	return Build(points, opts)
}

// Build clusters points on every zoom level between opts.MinZoom and
// opts.MaxZoom. Points with invalid coordinates are left out of the index
// and counted by Skipped.
func Build(points []domain.Point, opts domain.ClusterOptions) (*Index, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, &domain.IndexError{Points: len(points), Err: err}
	}

	idx := &Index{
		opts:     opts,
		points:   make([]domain.Point, 0, len(points)),
		levels:   make([]*level, opts.MaxZoom-opts.MinZoom+2),
		clusters: make(map[domain.ClusterID]*node),
	}

	nodes := make([]*node, 0, len(points))
	for _, p := range points {
		if err := p.Coordinate.Validate(); err != nil {
			idx.skipped++
			continue
		}
		x, y := project(p.Coordinate)
		idx.points = append(idx.points, p)
		nodes = append(nodes, &node{
			x:         x,
			y:         y,
			zoom:      unvisited,
			numPoints: 1,
			point:     len(idx.points) - 1,
		})
	}

	for z := opts.MaxZoom; z >= opts.MinZoom; z-- {
		lvl, err := newLevel(z+1, nodes)
		if err != nil {
			return nil, &domain.IndexError{Points: len(points), Err: err}
		}
		idx.levels[z+1-opts.MinZoom] = lvl
		nodes = idx.cluster(lvl, z)
	}

	top, err := newLevel(opts.MinZoom, nodes)
	if err != nil {
		return nil, &domain.IndexError{Points: len(points), Err: err}
	}
	idx.levels[0] = top

	return idx, nil
}

// cluster groups the nodes of lvl (zoom z+1) into the nodes of zoom z.
// Seeds are visited in level order. A neighbour joins a group while it
// lies within the radius of the group's running centroid.
func (idx *Index) cluster(lvl *level, z int) []*node {
	r := idx.opts.Radius / (idx.opts.Extent * math.Pow(2, float64(z)))
	r2 := r * r

	next := make([]*node, 0, len(lvl.entries))
	buf := make([]*entry, 0, idx.opts.NodeSize)
	scratch := make([]orb.Pointer, 0, idx.opts.NodeSize)
	unclaimed := func(e *entry) bool { return e.node.zoom > z }

	for _, e := range lvl.entries {
		p := e.node
		if p.zoom <= z {
			continue
		}
		p.zoom = z

		// candidates come from a 2r window around the seed
		buf, scratch = lvl.collect(buf[:0], scratch, orb.Bound{
			Min: orb.Point{p.x - 2*r, p.y - 2*r},
			Max: orb.Point{p.x + 2*r, p.y + 2*r},
		}, unclaimed)
		sortEntries(buf)

		wx := p.x * float64(p.numPoints)
		wy := p.y * float64(p.numPoints)
		count := p.numPoints
		var members []*node

		for _, h := range buf {
			b := h.node
			if b.zoom <= z {
				continue
			}
			cx, cy := wx/float64(count), wy/float64(count)
			if dx, dy := b.x-cx, b.y-cy; dx*dx+dy*dy > r2 {
				continue
			}
			b.zoom = z
			wx += b.x * float64(b.numPoints)
			wy += b.y * float64(b.numPoints)
			count += b.numPoints
			members = append(members, b)
		}

		if len(members) == 0 || count < idx.opts.MinPoints {
			next = append(next, p)
			next = append(next, members...)
			continue
		}

		idx.lastID++
		c := &node{
			x:         wx / float64(count),
			y:         wy / float64(count),
			zoom:      unvisited,
			numPoints: count,
			point:     -1,
			id:        idx.lastID,
			origin:    z,
			children:  append([]*node{p}, members...),
		}
		idx.clusters[c.id] = c
		next = append(next, c)
	}

	return next
}
