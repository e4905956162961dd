package config_test

import (
	"testing"
	"time"

	"github.com/okian/modelrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Owner, convey.ShouldEqual, "admin")
			convey.So(cfg.EscrowAccount, convey.ShouldEqual, "escrow")
			convey.So(cfg.TokenTTL, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.JWTSecret, convey.ShouldEqual, config.DevJWTSecret)
			convey.So(cfg.GenesisBalances, convey.ShouldBeEmpty)
			convey.So(cfg.FaucetAmount, convey.ShouldEqual, 0)
		})
	})
}
