package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/modelrank/internal/adapters/identity"
	app "github.com/okian/modelrank/internal/app"
	"github.com/okian/modelrank/internal/config"
	"github.com/okian/modelrank/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it exposes the serve, token and loadgen subcommands", func() {
			names := make([]string, 0, len(root.Commands()))
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "serve")
			convey.So(names, convey.ShouldContain, "token")
			convey.So(names, convey.ShouldContain, "loadgen")
		})

		convey.Convey("Then token requires a subject", func() {
			root.SetArgs([]string{"token"})
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			convey.So(root.ExecuteContext(context.Background()), convey.ShouldNotBeNil)
		})
	})
}

func TestTokenCommand(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		t.Setenv("MODELRANK_TOKEN_TTL", "1h")

		convey.Convey("When a token is minted for alice", func() {
			var out bytes.Buffer
			root := newRootCmd()
			root.SetOut(&out)
			root.SetArgs([]string{"token", "--subject", "alice"})
			err := root.ExecuteContext(context.Background())

			convey.Convey("Then it verifies against the configured secret", func() {
				convey.So(err, convey.ShouldBeNil)
				a, err := identity.NewAuthority(config.DevJWTSecret)
				convey.So(err, convey.ShouldBeNil)
				who, err := a.Verify(strings.TrimSpace(out.String()))
				convey.So(err, convey.ShouldBeNil)
				convey.So(who, convey.ShouldEqual, "alice")
			})
		})
	})
}

func TestServiceOptions(t *testing.T) {
	convey.Convey("Given a loaded configuration", t, func() {
		cfg := config.New()
		cfg.MinStake = 50
		cfg.FaucetAmount = 500

		convey.Convey("Then the mapped options build a working service", func() {
			svc := app.New(serviceOptions(cfg, logger.Get())...)
			ctx := context.Background()
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			balance, err := svc.Faucet(ctx, "alice")
			convey.So(err, convey.ShouldBeNil)
			convey.So(balance, convey.ShouldEqual, 500)

			stats := svc.GetStats()
			convey.So(stats["store"], convey.ShouldEqual, config.StoreMemory)
		})
	})
}

func TestServe(t *testing.T) {
	convey.Convey("Given a server bound to an ephemeral port", t, func() {
		t.Setenv("MODELRANK_ADDR", "127.0.0.1:0")

		convey.Convey("When its context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			err := serve(ctx)

			convey.Convey("Then it shuts down cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("MODELRANK_STORE", "postgres")

		convey.Convey("Then serve refuses to start", func() {
			convey.So(serve(context.Background()), convey.ShouldNotBeNil)
		})
	})
}
