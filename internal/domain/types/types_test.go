package types_test

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/passage"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/surge"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/types"
)

func TestFromResult(t *testing.T) {
	Convey("Given an engine result with a pending escalation", t, func() {
		at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		r := surge.Result{
			At:         at,
			RiskScore:  0.4567,
			State:      model.StateElevated,
			Target:     model.StateSurge,
			Pending:    model.StateCritical,
			HasPending: true,
			InState:    1500 * time.Millisecond,
			Zones: []surge.ZoneStatus{
				{Zone: model.NodeA, Role: model.RoleEntry, State: model.ZoneCrowded, Online: true, Age: 250 * time.Millisecond, DistanceCM: 40},
				{Zone: model.NodeB, Role: model.RoleCorridor, State: model.ZoneOffline},
			},
			PassageCount: 3,
			PassageRate:  6,
			DoorState:    passage.StatePassage,
			Color:        model.StateElevated.Color(),
		}

		v := types.FromResult(r)

		Convey("Then scalars are carried and durations become seconds", func() {
			So(v.RiskPercent, ShouldEqual, 46)
			So(v.InStateSeconds, ShouldEqual, 1.5)
			So(*v.Pending, ShouldEqual, model.StateCritical)
			So(v.Passage.DoorState, ShouldEqual, "PASSAGE")
			So(v.Zones, ShouldHaveLength, 2)
			So(v.Zones[0].AgeSeconds, ShouldEqual, 0.25)
		})

		Convey("Then the JSON uses state names", func() {
			b, err := json.Marshal(v)
			So(err, ShouldBeNil)
			var raw map[string]any
			So(json.Unmarshal(b, &raw), ShouldBeNil)
			So(raw["state"], ShouldEqual, "ELEVATED")
			So(raw["pending"], ShouldEqual, "CRITICAL")
			zones := raw["zones"].([]any)
			So(zones[1].(map[string]any)["state"], ShouldEqual, "OFFLINE")
		})

		Convey("When nothing is pending", func() {
			r.HasPending = false
			b, err := json.Marshal(types.FromResult(r))
			So(err, ShouldBeNil)
			So(string(b), ShouldNotContainSubstring, `"pending"`)
		})
	})
}

func TestSeconds(t *testing.T) {
	Convey("Given sub-millisecond noise", t, func() {
		So(types.Seconds(1234567*time.Microsecond), ShouldEqual, 1.235)
		So(types.Seconds(0), ShouldEqual, 0.0)
	})
}
