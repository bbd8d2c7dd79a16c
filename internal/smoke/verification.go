package smoke

import (
	"fmt"

	"github.com/okian/covid19india/internal/domain/model"
)

// verifyDistrict compares a read-back district with what was inserted.
func verifyDistrict(c created, got model.District) error {
	if want := c.Input.District(c.ID); got != want {
		return fmt.Errorf("%w: district %d: got %+v want %+v", ErrVerification, c.ID, got, want)
	}
	return nil
}

// verifyStatsDelta checks that the state totals grew by exactly the inserted
// sums. It assumes no other writer touches the state during the run.
func verifyStatsDelta(before, after model.StateStats, inserted []model.DistrictInput) error {
	cases, cured, active, deaths := sumDistricts(inserted)
	checks := []struct {
		name          string
		before, after *int64
		want          int64
	}{
		{"totalCases", before.TotalCases, after.TotalCases, cases},
		{"totalCured", before.TotalCured, after.TotalCured, cured},
		{"totalActive", before.TotalActive, after.TotalActive, active},
		{"totalDeaths", before.TotalDeaths, after.TotalDeaths, deaths},
	}
	for _, c := range checks {
		if got := value(c.after) - value(c.before); got != c.want {
			return fmt.Errorf("%w: %s grew by %d want %d", ErrVerification, c.name, got, c.want)
		}
	}
	return nil
}

// value reads a nullable total; null counts as zero.
func value(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
