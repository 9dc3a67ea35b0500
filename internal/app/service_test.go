package service_test

import (
	"context"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/voicebox/internal/app"
	"github.com/okian/voicebox/internal/config"
	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

// testConfig points storage at throwaway locations and leaves every
// remote credential empty.
func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.DatabaseDSN = ":memory:"
	cfg.AudioDir = t.TempDir()
	cfg.WorkerCount = 2
	cfg.QueueSize = 100
	cfg.STTAPIKey = ""
	cfg.AnthropicAPIKey = ""
	cfg.RedisAddr = ""
	return cfg
}

func TestService_New(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(testConfig(t))

		Convey("Then nothing is built before Start", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Pipeline(), ShouldBeNil)

			stats, err := svc.Stats(context.Background())
			So(err, ShouldBeNil)
			So(stats["started"], ShouldEqual, false)
		})

		Convey("And stopping it is a no-op", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})

	Convey("Given a nil config", t, func() {
		So(service.New(nil), ShouldNotBeNil)
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service without model credentials", t, func() {
		ctx := context.Background()
		svc := service.New(testConfig(t))

		err := svc.Start(ctx)
		So(err, ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then it starts with an in-memory backend", func() {
			stats, err := svc.Stats(ctx)
			So(err, ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["redisBackedQueue"], ShouldEqual, false)
		})

		Convey("And starting twice is harmless", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("And stages needing a model report a configuration error", func() {
			_, err := svc.Pipeline().Synthesize(ctx, "acme")
			So(err, ShouldWrap, errs.ErrConfiguration)
		})
	})

	Convey("Given an unsupported database driver", t, func() {
		cfg := testConfig(t)
		cfg.DatabaseDriver = "postgres"
		svc := service.New(cfg)

		Convey("Then Start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
			So(svc.Pipeline(), ShouldBeNil)
		})
	})
}
