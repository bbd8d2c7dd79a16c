// Package model contains domain models passed between layers.
// JSON tags define the wire schema of the HTTP API.
package model

// State is an administrative region referenced by districts. States are
// read-only from the API's perspective.
type State struct {
	StateID    int64  `json:"stateId"`
	StateName  string `json:"stateName"`
	Population int64  `json:"population"`
}

// District is a sub-region of a state tracking case counts.
type District struct {
	DistrictID   int64  `json:"districtId"`
	DistrictName string `json:"districtName"`
	StateID      int64  `json:"stateId"`
	Cases        int64  `json:"cases"`
	Cured        int64  `json:"cured"`
	Active       int64  `json:"active"`
	Deaths       int64  `json:"deaths"`
}

// DistrictInput carries the six mutable district fields used by insert and
// full-replace update.
type DistrictInput struct {
	DistrictName string `json:"districtName"`
	StateID      int64  `json:"stateId"`
	Cases        int64  `json:"cases"`
	Cured        int64  `json:"cured"`
	Active       int64  `json:"active"`
	Deaths       int64  `json:"deaths"`
}

// District returns the district this input describes under id.
func (in DistrictInput) District(id int64) District {
	return District{
		DistrictID:   id,
		DistrictName: in.DistrictName,
		StateID:      in.StateID,
		Cases:        in.Cases,
		Cured:        in.Cured,
		Active:       in.Active,
		Deaths:       in.Deaths,
	}
}

// StateStats holds per-state sums over all districts. A nil total means the
// state has no districts (SQL SUM over zero rows).
type StateStats struct {
	TotalCases  *int64 `json:"totalCases"`
	TotalCured  *int64 `json:"totalCured"`
	TotalActive *int64 `json:"totalActive"`
	TotalDeaths *int64 `json:"totalDeaths"`
}

// DistrictDetails is the state name a district belongs to.
type DistrictDetails struct {
	StateName string `json:"stateName"`
}
