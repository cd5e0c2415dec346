package application

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/input"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// ViewportConfig holds the caller-supplied inputs of a viewport.
type ViewportConfig struct {
	Options domain.ClusterOptions
	Region  domain.Region // initial region

	// RenderCluster produces the visual content of a cluster marker.
	RenderCluster func(count int) any

	OnMapReady             func()
	OnClusterClick         func()
	OnRegionChangeComplete func(region domain.Region)

	// NewKey generates render keys. Defaults to random UUIDs.
	NewKey func() string
}

// ViewportController connects map surface events to the cluster service
// and turns query results into render items. Events are handled one at a
// time; the sink is called while the event is handled and must not call
// back into the controller.
type ViewportController struct {
	mu      sync.Mutex
	cfg     ViewportConfig
	service input.ClusterService
	sink    output.RenderSink
	metrics output.MetricsCollector
	logger  *slog.Logger

	mounted  bool
	mapReady bool
	region   domain.Region
	points   []domain.Point
	items    []domain.RenderItem
	markers  map[string]*domain.ClusterMarker
	passes   uint64
}

// NewViewportController creates a viewport controller.
func NewViewportController(
	service input.ClusterService,
	sink output.RenderSink,
	cfg ViewportConfig,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *ViewportController {
	if cfg.NewKey == nil {
		cfg.NewKey = uuid.NewString
	}
	cfg.Options = cfg.Options.WithDefaults()

	return &ViewportController{
		cfg:     cfg,
		service: service,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		region:  cfg.Region,
		items:   []domain.RenderItem{},
		markers: map[string]*domain.ClusterMarker{},
	}
}

// Mount validates the configuration and builds the index for points.
// Nothing is rendered until the map reports ready.
func (c *ViewportController) Mount(points []domain.Point) error {
	c.mu.Lock()

	if c.mounted {
		c.mu.Unlock()
		return domain.ErrAlreadyMounted
	}
	if err := c.cfg.Options.Validate(); err != nil {
		c.mu.Unlock()
		c.logger.Error("invalid cluster options", "error", err)
		return err
	}
	if err := c.cfg.Region.Validate(); err != nil {
		c.mu.Unlock()
		c.logger.Error("invalid initial region", "region", c.cfg.Region.String(), "error", err)
		return err
	}

	c.points = slices.Clone(points)
	if err := c.service.CreateIndex(c.cfg.Options, c.points); err != nil {
		c.points = nil
		c.mu.Unlock()
		return err
	}
	c.mounted = true
	c.logger.Info("viewport mounted", "points", len(points), "map_ready", c.mapReady)

	if c.mapReady {
		c.render()
	}
	c.mu.Unlock()
	return nil
}

// MapReady flips the map-ready flag on the first call, renders the current
// region and fires OnMapReady. Later calls do nothing.
func (c *ViewportController) MapReady() {
	c.mu.Lock()
	if c.mapReady {
		c.mu.Unlock()
		return
	}
	c.mapReady = true
	c.logger.Info("map ready", "mounted", c.mounted)

	if c.mounted {
		c.clusterize()
	}
	cb := c.cfg.OnMapReady
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// SetPoints replaces the point set. The index is rebuilt only when the set
// changed; items are re-rendered when the map is ready.
func (c *ViewportController) SetPoints(points []domain.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		c.logger.Debug("points update ignored before mount", "points", len(points))
		return
	}
	if !c.service.IsPointSetChanged(points) {
		c.logger.Debug("point set unchanged", "points", len(points))
		return
	}

	c.points = slices.Clone(points)
	if err := c.service.CreateIndex(c.cfg.Options, c.points); err != nil {
		c.logger.Error("failed to rebuild index after points changed", "error", err)
		return
	}
	if c.mapReady {
		c.render()
	}
}

// RegionChangeComplete re-queries the index for region and forwards the
// region to OnRegionChangeComplete.
func (c *ViewportController) RegionChangeComplete(region domain.Region) {
	c.mu.Lock()
	c.region = region
	if c.mounted && c.mapReady {
		c.render()
	}
	cb := c.cfg.OnRegionChangeComplete
	c.mu.Unlock()

	if cb != nil {
		cb(region)
	}
}

// Items returns the items of the last render pass.
func (c *ViewportController) Items() []domain.RenderItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// ClickCluster invokes the click handler of the cluster marker rendered
// under key in the current pass.
func (c *ViewportController) ClickCluster(key string) error {
	c.mu.Lock()
	m, ok := c.markers[key]
	c.mu.Unlock()

	if !ok {
		return domain.ErrRenderKeyNotFound
	}
	m.Click()
	return nil
}

// Region returns the region in effect.
func (c *ViewportController) Region() domain.Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.region
}

// IsMapReady reports whether the map signalled ready.
func (c *ViewportController) IsMapReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapReady
}

// IsMounted reports whether Mount succeeded.
func (c *ViewportController) IsMounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Passes returns the number of render passes so far.
func (c *ViewportController) Passes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passes
}

// clusterize rebuilds the index if the recorded set went stale and
// renders. Callers hold c.mu.
func (c *ViewportController) clusterize() {
	if c.service.IsPointSetChanged(c.points) {
		if err := c.service.CreateIndex(c.cfg.Options, c.points); err != nil {
			c.logger.Error("failed to rebuild index", "error", err)
			return
		}
	}
	c.render()
}

// render queries the current region and hands a fresh item list to the
// sink. Callers hold c.mu.
func (c *ViewportController) render() {
	features := c.service.GetVisibleItems(c.region)

	items := make([]domain.RenderItem, 0, len(features))
	markers := make(map[string]*domain.ClusterMarker)

	for _, f := range features {
		key := c.cfg.NewKey()
		switch f := f.(type) {
		case domain.PointFeature:
			p := f.Point
			items = append(items, domain.RenderItem{Key: key, Point: &p})
		case domain.ClusterFeature:
			m := c.clusterMarker(f)
			markers[key] = m
			items = append(items, domain.RenderItem{Key: key, Cluster: m})
		}
	}

	c.items = items
	c.markers = markers
	c.passes++

	c.sink.Render(items)
	c.metrics.ObserveRenderPass(len(items))
	c.logger.Debug("rendered", "items", len(items), "pass", c.passes)
}

func (c *ViewportController) clusterMarker(f domain.ClusterFeature) *domain.ClusterMarker {
	zoom, err := c.service.ExpansionZoom(f)
	if err != nil {
		c.logger.Warn("failed to resolve cluster expansion zoom", "cluster", f.ID, "error", err)
		zoom = c.region.Zoom() + 1
	}

	m := &domain.ClusterMarker{
		ClusterID:     f.ID,
		Generation:    f.Generation,
		Coordinate:    f.Center,
		PointCount:    f.PointCount,
		ExpansionZoom: zoom,
	}
	if c.cfg.RenderCluster != nil {
		m.Content = c.cfg.RenderCluster(f.PointCount)
	}
	onClick := c.cfg.OnClusterClick
	m.OnClick = func() {
		if onClick != nil {
			onClick()
		}
	}
	return m
}
