package spatialindex

import (
	"math"

	"github.com/jobrunner/clustermap/internal/domain"
)

// lngX projects a longitude into [0, 1].
func lngX(lon float64) float64 {
	return lon/360 + 0.5
}

// latY projects a latitude into [0, 1] using spherical mercator. y grows
// southwards.
func latY(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	if y < 0 {
		return 0
	}
	if y > 1 {
		return 1
	}
	return y
}

func xLng(x float64) float64 {
	return (x - 0.5) * 360
}

func yLat(y float64) float64 {
	y2 := (180 - y*360) * math.Pi / 180
	return 360*math.Atan(math.Exp(y2))/math.Pi - 90
}

func project(c domain.Coordinate) (float64, float64) {
	return lngX(c.Lon), latY(c.Lat)
}

func unproject(x, y float64) domain.Coordinate {
	return domain.Coordinate{Lat: yLat(y), Lon: xLng(x)}
}
