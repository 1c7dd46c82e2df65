// Package geo provides great-circle distance and radius filtering for
// extracted records.
package geo

import (
	"math"
	"strings"

	"github.com/aluiziolira/go-rate-signals/models"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine distance between two points.
func DistanceKm(a, b models.LatLon) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Fence drops records farther than RadiusKm from Origin.
type Fence struct {
	Origin   models.LatLon
	RadiusKm float64
}

// Check reports the rounded distance to p and whether p lies inside the fence.
func (f Fence) Check(p models.LatLon) (float64, bool) {
	d := DistanceKm(f.Origin, p)
	return round2(d), d <= f.RadiusKm
}

// Apply keeps observations inside the fence and stamps their distance.
// Observations without coordinates are kept with a nil distance.
func (f Fence) Apply(obs []models.RawObservation) (kept []models.RawObservation, dropped int) {
	kept = obs[:0:0]
	for _, o := range obs {
		if o.RawLatLon == nil {
			kept = append(kept, o)
			continue
		}
		d, inside := f.Check(*o.RawLatLon)
		if !inside {
			dropped++
			continue
		}
		o.DistanceKm = &d
		kept = append(kept, o)
	}
	return kept, dropped
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MetroArea is a listing region that event sites index by ID.
type MetroArea struct {
	ID     string        `yaml:"id"`
	Slug   string        `yaml:"slug"`
	Name   string        `yaml:"name"`
	Center models.LatLon `yaml:"center"`
}

// DefaultMetroAreas covers the northern, central and southern Mexican
// markets served out of the box.
var DefaultMetroAreas = []MetroArea{
	{ID: "31097", Slug: "mexico-tijuana", Name: "Tijuana", Center: models.LatLon{Latitude: 32.5149, Longitude: -117.0382}},
	{ID: "31098", Slug: "mexico-monterrey", Name: "Monterrey", Center: models.LatLon{Latitude: 25.6866, Longitude: -100.3161}},
	{ID: "31099", Slug: "mexico-guadalajara", Name: "Guadalajara", Center: models.LatLon{Latitude: 20.6597, Longitude: -103.3496}},
	{ID: "31100", Slug: "mexico-mexico-city", Name: "Mexico City", Center: models.LatLon{Latitude: 19.4326, Longitude: -99.1332}},
}

// NearestMetro returns the closest metro area within maxKm of p.
func NearestMetro(p models.LatLon, areas []MetroArea, maxKm float64) (MetroArea, bool) {
	var (
		best     MetroArea
		bestDist = math.Inf(1)
	)
	for _, area := range areas {
		if d := DistanceKm(p, area.Center); d < bestDist {
			best, bestDist = area, d
		}
	}
	if bestDist > maxKm {
		return MetroArea{}, false
	}
	return best, true
}

// MetroForCity finds a configured metro area by name, ignoring case.
func MetroForCity(city string, areas []MetroArea) (MetroArea, bool) {
	city = strings.TrimSpace(strings.ToLower(city))
	if city == "" {
		return MetroArea{}, false
	}
	for _, area := range areas {
		if strings.ToLower(area.Name) == city || strings.Contains(area.Slug, strings.ReplaceAll(city, " ", "-")) {
			return area, true
		}
	}
	return MetroArea{}, false
}
