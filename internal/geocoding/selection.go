package geocoding

// Selector picks the result a reverse lookup at target resolves to.
// It returns false when no result is acceptable.
type Selector func(target Coordinate, results []GeoResult) (GeoResult, bool)

// FirstResult takes the provider's top-ranked result without any distance check.
func FirstResult(_ Coordinate, results []GeoResult) (GeoResult, bool) {
	if len(results) == 0 {
		return GeoResult{}, false
	}
	return results[0], true
}

// NearestWithin picks the result closest to target, rejecting everything
// farther than meters away. A non-positive radius behaves like FirstResult.
func NearestWithin(meters float64) Selector {
	if meters <= 0 {
		return FirstResult
	}
	return func(target Coordinate, results []GeoResult) (GeoResult, bool) {
		best := -1
		bestDistance := 0.0
		for i, r := range results {
			d := Distance(target, r.Coordinate)
			if d > meters {
				continue
			}
			if best < 0 || d < bestDistance {
				best, bestDistance = i, d
			}
		}
		if best < 0 {
			return GeoResult{}, false
		}
		return results[best], true
	}
}
