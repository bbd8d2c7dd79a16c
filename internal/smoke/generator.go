package smoke

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/covid19india/internal/domain/model"
)

// Upper bounds for generated case counts.
const (
	maxCured  = 50000
	maxActive = 20000
	maxDeaths = 1000
)

const districtNamePrefix = "smoke-"

// randomInt64 returns a value in [0, n) using crypto/rand.
func randomInt64(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// generateDistricts creates n districts of stateID with unique names.
// Cases always equal cured + active + deaths.
func generateDistricts(n int, stateID int64) []model.DistrictInput {
	out := make([]model.DistrictInput, n)
	for i := range out {
		cured := randomInt64(maxCured)
		active := randomInt64(maxActive)
		deaths := randomInt64(maxDeaths)
		out[i] = model.DistrictInput{
			DistrictName: districtNamePrefix + uuid.NewString(),
			StateID:      stateID,
			Cases:        cured + active + deaths,
			Cured:        cured,
			Active:       active,
			Deaths:       deaths,
		}
	}
	return out
}

// sumDistricts returns the totals a stats query should grow by.
func sumDistricts(in []model.DistrictInput) (cases, cured, active, deaths int64) {
	for _, d := range in {
		cases += d.Cases
		cured += d.Cured
		active += d.Active
		deaths += d.Deaths
	}
	return cases, cured, active, deaths
}
