package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	ctx := context.Background()
	namedLogger.Info(ctx, "test message")
}

func TestLoggerFormats(t *testing.T) {
	Convey("Given an initialized logger", t, func() {
		So(Init(), ShouldBeNil)
		ctx := context.Background()
		var buf bytes.Buffer

		Convey("When switching to the json format", func() {
			So(SetFormat(FormatJSON, &buf), ShouldBeNil)
			Get().Info(ctx, "district added", Int64("districtId", 7), Error(errors.New("boom")))

			Convey("Then records are JSON with fields and source", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "district added")
				So(rec["districtId"], ShouldEqual, float64(7))
				So(rec["error"], ShouldEqual, "boom")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When switching to the console format on a buffer", func() {
			So(SetFormat(FormatConsole, &buf), ShouldBeNil)
			Get().Warn(ctx, "slow query", String("op", "list_states"))

			Convey("Then output is plain text without colour codes", func() {
				So(buf.String(), ShouldContainSubstring, "slow query")
				So(buf.String(), ShouldContainSubstring, "op=list_states")
				So(buf.String(), ShouldNotContainSubstring, "\x1b[")
			})
		})

		Convey("When a named logger is created before the format changes", func() {
			named := Named("repo")
			So(SetFormat(FormatText, &buf), ShouldBeNil)
			named.Info(ctx, "opened", String("path", "x.db"))

			Convey("Then it writes through the new handler under its group", func() {
				So(buf.String(), ShouldContainSubstring, "repo.path=x.db")
			})
		})

		Convey("When the format is unknown", func() {
			err := SetFormat("xml", &buf)

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})

		Reset(func() {
			_ = SetFormat(FormatText, nil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the global level", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Known levels are applied", func() {
			So(SetLevelString("debug"), ShouldBeNil)
			So(Level(), ShouldEqual, slog.LevelDebug)
			So(SetLevelString("WARNING"), ShouldBeNil)
			So(Level(), ShouldEqual, slog.LevelWarn)
			So(SetLevelString(""), ShouldBeNil)
			So(Level(), ShouldEqual, slog.LevelInfo)
		})

		Convey("Unknown levels are rejected", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}
