package profiles

import (
	"math/rand"

	"github.com/kilianp07/evcharge/core/model"
)

// degradationRange is the uniform range of remaining capacity per chemistry.
var degradationRange = map[model.Chemistry][2]float64{
	model.LTO: {0.95, 1},
	model.LMO: {0.85, 1},
	model.NMC: {0.90, 1},
}

// DegradedSize draws a degraded capacity for a pack of sizeKWh. Unknown
// chemistries are returned unchanged.
func DegradedSize(chem model.Chemistry, sizeKWh float64, rng *rand.Rand) float64 {
	r, ok := degradationRange[chem]
	if !ok || rng == nil {
		return sizeKWh
	}
	return sizeKWh * (r[0] + rng.Float64()*(r[1]-r[0]))
}
