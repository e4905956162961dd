package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/modelrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
				convey.So(cfg.MinStake, convey.ShouldEqual, 1000)
				convey.So(cfg.LockupPeriod, convey.ShouldEqual, 100)
				convey.So(cfg.BlockInterval, convey.ShouldEqual, time.Second)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MODELRANK_ADDR", ":8080")
			_ = os.Setenv("MODELRANK_MIN_STAKE", "250")
			_ = os.Setenv("MODELRANK_LOCKUP_PERIOD", "5")
			_ = os.Setenv("MODELRANK_BLOCK_INTERVAL", "250ms")
			_ = os.Setenv("MODELRANK_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MinStake, convey.ShouldEqual, 250)
				convey.So(cfg.LockupPeriod, convey.ShouldEqual, 5)
				convey.So(cfg.BlockInterval, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
# file values
addr: ":9090"
store: badger
data_dir: /tmp/modelrank
owner: root
min_stake: 500
genesis_balances:
  alice: 10000
  bob: 2500
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MODELRANK_CONFIG", tmpFile)
			_ = os.Setenv("MODELRANK_MIN_STAKE", "750")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreBadger)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/tmp/modelrank")
				convey.So(cfg.Owner, convey.ShouldEqual, "root")
				convey.So(cfg.MinStake, convey.ShouldEqual, 750)
				convey.So(cfg.GenesisBalances, convey.ShouldResemble, map[string]uint64{"alice": 10000, "bob": 2500})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("MODELRANK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MODELRANK_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("MODELRANK_MIN_STAKE", "lots")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		cases := map[string]string{
			"MODELRANK_ADDR":           "",
			"MODELRANK_STORE":          "postgres",
			"MODELRANK_MIN_STAKE":      "0",
			"MODELRANK_LOG_LEVEL":      "chatty",
			"MODELRANK_JWT_SECRET":     "short",
			"MODELRANK_ESCROW_ACCOUNT": "admin",
			"MODELRANK_BLOCK_INTERVAL": "0s",
			"MODELRANK_LOCKUP_PERIOD":  "0",
		}
		for key, value := range cases {
			_ = os.Setenv(key, value)
			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
			_ = os.Unsetenv(key)
		}

		convey.Convey("The badger store needs a data directory", func() {
			cfg := config.New()
			cfg.Store = config.StoreBadger
			cfg.DataDir = ""
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("The escrow account cannot hold a genesis balance", func() {
			cfg := config.New()
			cfg.GenesisBalances = map[string]uint64{"escrow": 1}
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("The defaults are valid", func() {
			convey.So(config.Validate(config.New()), convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"MODELRANK_CONFIG",
		"MODELRANK_ADDR",
		"MODELRANK_STORE",
		"MODELRANK_MIN_STAKE",
		"MODELRANK_LOCKUP_PERIOD",
		"MODELRANK_BLOCK_INTERVAL",
		"MODELRANK_CORS_ALLOWED_ORIGINS",
		"MODELRANK_LOG_LEVEL",
		"MODELRANK_JWT_SECRET",
		"MODELRANK_ESCROW_ACCOUNT",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "modelrank-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
