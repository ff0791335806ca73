package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/repository"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func reading(id model.NodeID, dist float64, at time.Time) model.Reading {
	return model.Reading{Node: id, DistanceCM: dist, Timestamp: at}
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a store for the three default nodes", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(model.DefaultSite().IDs(), repository.WithNodeTimeout(5*time.Second))

		Convey("Unknown nodes are rejected", func() {
			_, err := s.Put(ctx, reading("Z", 100, t0))
			So(errors.Is(err, model.ErrUnknownNode), ShouldBeTrue)
		})

		Convey("Readings without a timestamp are rejected", func() {
			_, err := s.Put(ctx, model.Reading{Node: model.NodeA})
			So(errors.Is(err, repository.ErrNoTimestamp), ShouldBeTrue)
		})

		Convey("Only the newest reading per node is kept", func() {
			ok, err := s.Put(ctx, reading(model.NodeA, 100, t0.Add(time.Second)))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			ok, _ = s.Put(ctx, reading(model.NodeA, 50, t0))
			So(ok, ShouldBeFalse)

			snap := s.Snapshot(ctx, t0.Add(2*time.Second))
			So(snap.Readings[model.NodeA].DistanceCM, ShouldEqual, 100)
			So(snap.At, ShouldEqual, t0.Add(2*time.Second))
		})

		Convey("Nodes older than the timeout are absent from snapshots", func() {
			s.Put(ctx, reading(model.NodeA, 100, t0))
			s.Put(ctx, reading(model.NodeB, 120, t0.Add(4*time.Second)))

			snap := s.Snapshot(ctx, t0.Add(6*time.Second))
			_, hasA := snap.Reading(model.NodeA)
			_, hasB := snap.Reading(model.NodeB)
			_, hasC := snap.Reading(model.NodeC)
			So(hasA, ShouldBeFalse)
			So(hasB, ShouldBeTrue)
			So(hasC, ShouldBeFalse)

			nodes := s.Nodes(ctx, t0.Add(6*time.Second))
			So(nodes, ShouldHaveLength, 3)
			So(nodes[0].Node, ShouldEqual, model.NodeA)
			So(nodes[0].Online, ShouldBeFalse)
			So(nodes[0].Age, ShouldEqual, 6*time.Second)
			So(nodes[1].Online, ShouldBeTrue)
			So(nodes[1].Reading.DistanceCM, ShouldEqual, 120)
			So(nodes[2].Reading, ShouldBeNil)
			So(nodes[2].Online, ShouldBeFalse)
		})

		Convey("Snapshots are copies", func() {
			s.Put(ctx, reading(model.NodeC, 200, t0))
			snap := s.Snapshot(ctx, t0)
			snap.Readings[model.NodeC] = reading(model.NodeC, 1, t0)
			So(s.Snapshot(ctx, t0).Readings[model.NodeC].DistanceCM, ShouldEqual, 200)
		})

		Convey("Concurrent writers and readers see consistent state", func() {
			var wg sync.WaitGroup
			for i := range 50 {
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, _ = s.Put(ctx, reading(model.NodeB, float64(i), t0.Add(time.Duration(i)*time.Millisecond)))
				}()
				go func() {
					defer wg.Done()
					_ = s.Snapshot(ctx, t0)
				}()
			}
			wg.Wait()
			So(s.Snapshot(ctx, t0.Add(time.Second)).Readings[model.NodeB].DistanceCM, ShouldEqual, 49)
			So(s.Nodes(ctx, t0)[1].Received, ShouldEqual, 50)
		})
	})
}
