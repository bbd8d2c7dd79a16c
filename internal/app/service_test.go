package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/okian/covid19india/internal/adapters/repository"
	"github.com/okian/covid19india/internal/adapters/repository/sqlitetest"
	service "github.com/okian/covid19india/internal/app"
	"github.com/okian/covid19india/internal/domain/model"
	"github.com/okian/covid19india/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["dbPath"], ShouldEqual, "covid19India.db")
			So(stats["started"], ShouldEqual, false)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithDBPath("other.db"),
			service.WithBusyTimeout(time.Second),
			service.WithLogger(logger.Get().Named("test")),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats()["dbPath"], ShouldEqual, "other.db")
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service pointing at a seeded database", t, func() {
		svc := service.New(service.WithDBPath(sqlitetest.NewDB(t)))
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.Ping(ctx), ShouldBeNil)
			})

			Convey("And it should report pool stats", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats, ShouldContainKey, "openConnections")
				So(stats, ShouldContainKey, "waitCount")
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a service pointing at a missing file", t, func() {
		svc := service.New(service.WithDBPath(filepath.Join(t.TempDir(), "missing.db")))

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then the open error is returned", func() {
				So(errors.Is(err, repository.ErrOpen), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithDBPath(sqlitetest.NewDB(t)))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.Start(ctx)
		So(err, ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})

			Convey("And data operations report it", func() {
				_, err := svc.ListStates(ctx)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(errors.Is(svc.Ping(ctx), service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_InjectedStore(t *testing.T) {
	Convey("Given a service with an injected store", t, func() {
		ctx := context.Background()
		store, err := repository.NewSQLiteStore(ctx, sqlitetest.NewDB(t))
		So(err, ShouldBeNil)
		defer func() { _ = store.Close() }()

		svc := service.New(service.WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When the service is stopped", func() {
			svc.Stop()

			Convey("Then the injected store stays open", func() {
				So(store.Ping(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Operations(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithDBPath(sqlitetest.NewDB(t)))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When reading states", func() {
			states, err := svc.ListStates(ctx)
			So(err, ShouldBeNil)
			kerala, err := svc.GetState(ctx, 17)

			Convey("Then the seeded rows come back", func() {
				So(len(states), ShouldEqual, len(sqlitetest.DefaultStates))
				So(err, ShouldBeNil)
				So(kerala.StateName, ShouldEqual, "Kerala")
			})
		})

		Convey("When a district goes through its lifecycle", func() {
			in := model.DistrictInput{DistrictName: "Wayanad", StateID: 17, Cases: 30, Cured: 10, Active: 19, Deaths: 1}
			id, err := svc.AddDistrict(ctx, in)
			So(err, ShouldBeNil)

			got, err := svc.GetDistrict(ctx, id)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, in.District(id))

			stats, err := svc.StateStats(ctx, 17)
			So(err, ShouldBeNil)
			So(*stats.TotalCases, ShouldEqual, int64(30))

			details, err := svc.DistrictStateName(ctx, id)
			So(err, ShouldBeNil)
			So(details.StateName, ShouldEqual, "Kerala")

			in.Cases = 31
			So(svc.UpdateDistrict(ctx, id, in), ShouldBeNil)
			got, err = svc.GetDistrict(ctx, id)
			So(err, ShouldBeNil)
			So(got.Cases, ShouldEqual, int64(31))

			So(svc.DeleteDistrict(ctx, id), ShouldBeNil)

			Convey("Then the removed district is not found", func() {
				_, err := svc.GetDistrict(ctx, id)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats()

			Convey("Then it should return basic stats", func() {
				So(stats, ShouldNotBeNil)
				So(stats["started"], ShouldEqual, false)
				So(stats, ShouldNotContainKey, "openConnections")
			})
		})
	})
}
