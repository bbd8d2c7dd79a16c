package repository

import (
	"database/sql"

	"github.com/okian/covid19india/internal/domain/model"
)

// Row types mirror storage columns. The toModel methods are the only place
// where column names are mapped to API field names.

type stateRow struct {
	StateID    int64          // state_id
	StateName  sql.NullString // state_name
	Population sql.NullInt64  // population
}

func (r stateRow) toModel() model.State {
	return model.State{
		StateID:    r.StateID,
		StateName:  r.StateName.String,
		Population: r.Population.Int64,
	}
}

type districtRow struct {
	DistrictID   int64          // district_id
	DistrictName sql.NullString // district_name
	StateID      sql.NullInt64  // state_id
	Cases        sql.NullInt64  // cases
	Cured        sql.NullInt64  // cured
	Active       sql.NullInt64  // active
	Deaths       sql.NullInt64  // deaths
}

func (r districtRow) toModel() model.District {
	return model.District{
		DistrictID:   r.DistrictID,
		DistrictName: r.DistrictName.String,
		StateID:      r.StateID.Int64,
		Cases:        r.Cases.Int64,
		Cured:        r.Cured.Int64,
		Active:       r.Active.Int64,
		Deaths:       r.Deaths.Int64,
	}
}

type statsRow struct {
	TotalCases  sql.NullInt64
	TotalCured  sql.NullInt64
	TotalActive sql.NullInt64
	TotalDeaths sql.NullInt64
}

func (r statsRow) toModel() model.StateStats {
	return model.StateStats{
		TotalCases:  nullableInt(r.TotalCases),
		TotalCured:  nullableInt(r.TotalCured),
		TotalActive: nullableInt(r.TotalActive),
		TotalDeaths: nullableInt(r.TotalDeaths),
	}
}

func nullableInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
