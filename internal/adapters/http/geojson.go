package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/clustermap/internal/domain"
)

// ExpansionFunc resolves the expansion zoom of a cluster.
type ExpansionFunc func(domain.ClusterFeature) (int, error)

func orbPoint(c domain.Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// payloadProperties copies a point payload into feature properties.
func payloadProperties(p domain.Point) geojson.Properties {
	props := geojson.Properties{}
	if m, ok := p.Payload.(map[string]any); ok {
		for k, v := range m {
			props[k] = v
		}
	} else if p.Payload != nil {
		props["payload"] = p.Payload
	}
	return props
}

func pointFeature(p domain.Point) *geojson.Feature {
	f := geojson.NewFeature(orbPoint(p.Coordinate))
	f.Properties = payloadProperties(p)
	f.Properties["cluster"] = false
	f.Properties["point_id"] = uint64(p.ID)
	return f
}

// FeaturesToGeoJSON converts a query result. Clusters carry their
// expansion zoom when zoomOf can resolve it.
func FeaturesToGeoJSON(features []domain.Feature, zoomOf ExpansionFunc) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, feature := range features {
		switch f := feature.(type) {
		case domain.PointFeature:
			fc.Append(pointFeature(f.Point))
		case domain.ClusterFeature:
			gf := geojson.NewFeature(orbPoint(f.Center))
			gf.Properties["cluster"] = true
			gf.Properties["cluster_id"] = uint64(f.ID)
			gf.Properties["point_count"] = f.PointCount
			gf.Properties["generation"] = f.Generation
			if zoomOf != nil {
				if z, err := zoomOf(f); err == nil {
					gf.Properties["expansion_zoom"] = z
				}
			}
			fc.Append(gf)
		}
	}
	return fc
}

func pointsToGeoJSON(points []domain.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		fc.Append(pointFeature(p))
	}
	return fc
}

// itemsToGeoJSON converts a render pass. Cluster content is the output
// of the configured label function.
func itemsToGeoJSON(items []domain.RenderItem) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, item := range items {
		f := geojson.NewFeature(orbPoint(item.Position()))
		f.Properties["key"] = item.Key
		f.Properties["cluster"] = item.IsCluster()
		if m := item.Cluster; m != nil {
			f.Properties["cluster_id"] = uint64(m.ClusterID)
			f.Properties["generation"] = m.Generation
			f.Properties["point_count"] = m.PointCount
			f.Properties["expansion_zoom"] = m.ExpansionZoom
			f.Properties["content"] = m.Content
		} else if item.Point != nil {
			f.Properties["point_id"] = uint64(item.Point.ID)
			f.Properties["payload"] = payloadProperties(*item.Point)
		}
		fc.Append(f)
	}
	return fc
}
