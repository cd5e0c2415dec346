package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jobrunner/clustermap/internal/application"
	"github.com/jobrunner/clustermap/internal/domain"
)

const defaultLeavesLimit = 10

// regionBody is the JSON shape of a map region.
type regionBody struct {
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	LatitudeDelta  *float64 `json:"latitudeDelta"`
	LongitudeDelta *float64 `json:"longitudeDelta"`
}

func (b regionBody) region() (domain.Region, error) {
	if b.Latitude == nil || b.Longitude == nil || b.LatitudeDelta == nil || b.LongitudeDelta == nil {
		return domain.Region{}, errors.New("latitude, longitude, latitudeDelta and longitudeDelta are required")
	}
	r := domain.NewRegion(*b.Latitude, *b.Longitude, *b.LatitudeDelta, *b.LongitudeDelta)
	return r, r.Validate()
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.svc.Health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":          boolToStatus(details.Healthy),
		"ready":           details.Ready,
		"datasets_loaded": details.DatasetsLoaded,
		"datasets_ready":  details.DatasetsReady,
		"indexed_points":  details.IndexedPoints,
		"components":      details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleClusters answers a stateless viewport query against the current
// index.
func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	region, err := parseRegionQuery(r)
	if err != nil {
		s.handleError(w, err)
		return
	}

	features, generation := s.svc.Clusters.VisibleItems(region)
	fc := FeaturesToGeoJSON(features, s.svc.Clusters.ExpansionZoom)

	w.Header().Set("X-Index-Generation", strconv.FormatUint(generation, 10))
	s.writeJSON(w, http.StatusOK, fc)
}

// handleClusterChildren returns the features one zoom below a cluster.
func (s *Server) handleClusterChildren(w http.ResponseWriter, r *http.Request) {
	cluster, err := parseClusterRef(r)
	if err != nil {
		s.handleError(w, err)
		return
	}

	children, err := s.svc.Clusters.ExpandCluster(cluster)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, FeaturesToGeoJSON(children, s.svc.Clusters.ExpansionZoom))
}

// handleClusterLeaves returns a page of the points inside a cluster.
func (s *Server) handleClusterLeaves(w http.ResponseWriter, r *http.Request) {
	cluster, err := parseClusterRef(r)
	if err != nil {
		s.handleError(w, err)
		return
	}

	limit, err := intParam(r, "limit", defaultLeavesLimit)
	if err != nil {
		s.handleError(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if offset < 0 {
		s.handleError(w, invalidParam("offset", offset, ">= 0"))
		return
	}

	leaves, err := s.svc.Clusters.ClusterLeaves(cluster, limit, offset)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, pointsToGeoJSON(leaves))
}

// handleExpansionZoom returns the zoom at which a cluster splits.
func (s *Server) handleExpansionZoom(w http.ResponseWriter, r *http.Request) {
	cluster, err := parseClusterRef(r)
	if err != nil {
		s.handleError(w, err)
		return
	}

	zoom, err := s.svc.Clusters.ExpansionZoom(cluster)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cluster_id":     cluster.ID,
		"generation":     cluster.Generation,
		"expansion_zoom": zoom,
	})
}

// handleViewportReady signals that the map can display markers.
func (s *Server) handleViewportReady(w http.ResponseWriter, _ *http.Request) {
	s.svc.Viewport.MapReady()
	s.writeItems(w)
}

// handleViewportRegion reports a completed region change.
func (s *Server) handleViewportRegion(w http.ResponseWriter, r *http.Request) {
	var body regionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	region, err := body.region()
	if err != nil {
		s.handleError(w, asValidation("region", err))
		return
	}

	s.svc.Viewport.RegionChangeComplete(region)
	s.writeItems(w)
}

// handleViewportItems returns the latest render pass.
func (s *Server) handleViewportItems(w http.ResponseWriter, _ *http.Request) {
	s.writeItems(w)
}

// handleViewportClick activates a cluster marker of the current pass.
func (s *Server) handleViewportClick(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	_, items := s.svc.Sink.Latest()
	var marker *domain.ClusterMarker
	for _, item := range items {
		if item.Key == key {
			marker = item.Cluster
			break
		}
	}

	if err := s.svc.Viewport.ClickCluster(key); err != nil {
		s.handleError(w, err)
		return
	}

	resp := map[string]interface{}{"key": key}
	if marker != nil {
		resp["cluster_id"] = marker.ClusterID
		resp["generation"] = marker.Generation
		resp["expansion_zoom"] = marker.ExpansionZoom
		resp["latitude"] = marker.Coordinate.Lat
		resp["longitude"] = marker.Coordinate.Lon
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeItems(w http.ResponseWriter) {
	pass, items := s.svc.Sink.Latest()
	w.Header().Set("X-Render-Pass", strconv.FormatUint(pass, 10))
	s.writeJSON(w, http.StatusOK, itemsToGeoJSON(items))
}

// handleListDatasets returns all registered datasets.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.svc.Registry.ListDatasets(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list datasets")
		return
	}

	response := make([]map[string]interface{}, len(datasets))
	for i := range datasets {
		response[i] = formatDataset(&datasets[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": response,
		"count":    len(datasets),
	})
}

// handleGetDataset returns a specific dataset.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.Registry.GetDataset(r.Context(), mux.Vars(r)["datasetId"])
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatDataset(ds))
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Sync.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

func formatDataset(ds *domain.Dataset) map[string]interface{} {
	out := map[string]interface{}{
		"id":          ds.ID,
		"name":        ds.Name,
		"key":         ds.Key,
		"format":      ds.Format,
		"size":        ds.Size,
		"point_count": ds.PointCount,
		"skipped":     ds.Skipped,
		"status":      ds.Status,
		"ready":       ds.IsReady(),
		"loaded_at":   ds.LoadedAt,
	}
	if ds.Err != "" {
		out["error"] = ds.Err
	}
	return out
}

// parseRegionQuery reads lat, lon, lat_delta and lon_delta.
func parseRegionQuery(r *http.Request) (domain.Region, error) {
	q := r.URL.Query()
	values := make(map[string]float64, 4)
	for _, name := range []string{"lat", "lon", "lat_delta", "lon_delta"} {
		raw := q.Get(name)
		if raw == "" {
			return domain.Region{}, invalidParam(name, raw, "required")
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Region{}, invalidParam(name, raw, "number")
		}
		values[name] = v
	}

	region := domain.NewRegion(values["lat"], values["lon"], values["lat_delta"], values["lon_delta"])
	if err := region.Validate(); err != nil {
		return domain.Region{}, asValidation("region", err)
	}
	return region, nil
}

// parseClusterRef reads the cluster ID path variable and the generation
// query parameter.
func parseClusterRef(r *http.Request) (domain.ClusterFeature, error) {
	rawID := mux.Vars(r)["clusterId"]
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return domain.ClusterFeature{}, invalidParam("clusterId", rawID, "unsigned integer")
	}

	rawGen := r.URL.Query().Get("generation")
	gen, err := strconv.ParseUint(rawGen, 10, 64)
	if err != nil || gen == 0 {
		return domain.ClusterFeature{}, invalidParam("generation", rawGen, "positive integer")
	}

	return domain.ClusterFeature{ID: domain.ClusterID(id), Generation: gen}, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, raw, "integer")
	}
	return v, nil
}

func invalidParam(name string, value interface{}, constraint string) error {
	return &domain.ValidationError{
		Field:      name,
		Value:      value,
		Constraint: constraint,
		Message:    fmt.Sprintf("invalid %s parameter", name),
	}
}

// asValidation turns a region error into a ValidationError with a
// readable message.
func asValidation(field string, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &domain.ValidationError{Field: field, Constraint: "valid region", Message: err.Error()}
}

// handleError maps domain errors to HTTP status codes.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrStaleCluster):
		s.writeError(w, http.StatusConflict, "Cluster belongs to an outdated index")
	case errors.Is(err, domain.ErrClusterNotFound):
		s.writeError(w, http.StatusNotFound, "Cluster not found")
	case errors.Is(err, domain.ErrDatasetNotFound):
		s.writeError(w, http.StatusNotFound, "Dataset not found")
	case errors.Is(err, domain.ErrRenderKeyNotFound):
		s.writeError(w, http.StatusNotFound, "Marker not found in the current render pass")
	case errors.Is(err, domain.ErrIndexNotReady):
		s.writeError(w, http.StatusServiceUnavailable, "Cluster index not ready")
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Request failed")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
