package geo

import (
	"sort"

	"transport-dispatch-backend/internal/model"
)

// RankedVehicle pairs a candidate vehicle with its straight-line
// distance from the origin.
type RankedVehicle struct {
	Vehicle    model.VehicleLocation `json:"vehicle"`
	DistanceKm float64               `json:"distanceKm"`
}

// Nearest ranks the available candidates by ascending distance from the
// origin, ties broken by vehicle identifier so the ordering is
// deterministic. Vehicles that are not available or out of service are
// excluded. A non-positive limit returns the full ranking.
func Nearest(origin Coordinate, candidates []model.VehicleLocation, limit int) []RankedVehicle {
	ranked := make([]RankedVehicle, 0, len(candidates))
	for _, v := range candidates {
		if v.Status != model.VehicleAvailable || !v.InService {
			continue
		}
		d := Haversine(origin, Coordinate{Latitude: v.Latitude, Longitude: v.Longitude})
		ranked = append(ranked, RankedVehicle{Vehicle: v, DistanceKm: d})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].DistanceKm != ranked[j].DistanceKm {
			return ranked[i].DistanceKm < ranked[j].DistanceKm
		}
		return ranked[i].Vehicle.VehicleID < ranked[j].Vehicle.VehicleID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
