package model

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDistrictInput_District(t *testing.T) {
	Convey("Given a district input", t, func() {
		in := DistrictInput{DistrictName: "X", StateID: 1, Cases: 10, Cured: 5, Active: 5, Deaths: 0}

		Convey("When it is bound to an id", func() {
			d := in.District(42)

			Convey("Then every field is carried over", func() {
				So(d, ShouldResemble, District{
					DistrictID: 42, DistrictName: "X", StateID: 1,
					Cases: 10, Cured: 5, Active: 5, Deaths: 0,
				})
			})
		})
	})
}

func TestWireSchema(t *testing.T) {
	Convey("Given domain values", t, func() {
		Convey("A district encodes with camelCase keys", func() {
			b, err := json.Marshal(District{DistrictID: 3, DistrictName: "Ernakulam", StateID: 17, Cases: 1, Cured: 2, Active: 3, Deaths: 4})
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"districtId":3,"districtName":"Ernakulam","stateId":17,"cases":1,"cured":2,"active":3,"deaths":4}`)
		})

		Convey("Empty stats encode as nulls", func() {
			b, err := json.Marshal(StateStats{})
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"totalCases":null,"totalCured":null,"totalActive":null,"totalDeaths":null}`)
		})

		Convey("A district input ignores a client supplied id", func() {
			var in DistrictInput
			So(json.Unmarshal([]byte(`{"districtId":99,"districtName":"Y","stateId":2}`), &in), ShouldBeNil)
			So(in.District(7).DistrictID, ShouldEqual, 7)
			So(in.DistrictName, ShouldEqual, "Y")
		})
	})
}
