// Package config defines service configuration structures and loading hooks.
package config

import (
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// DevJWTSecret is the default signing secret. It is only fit for local use.
const DevJWTSecret = "modelrank-development-secret"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"loglevel"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// Store selects the ledger backend.
	Store string `koanf:"store" validate:"oneof=memory badger"`

	// DataDir is the badger directory. Required for the badger backend.
	DataDir string `koanf:"data_dir" validate:"required_if=Store badger"`

	// BadgerSyncWrites fsyncs every commit.
	BadgerSyncWrites bool `koanf:"badger_sync_writes"`

	// BadgerGCInterval is how often value log GC runs; 0 disables it.
	BadgerGCInterval time.Duration `koanf:"badger_gc_interval" validate:"gte=0"`

	// Owner is the platform administrator identity.
	Owner string `koanf:"owner" validate:"required"`

	// EscrowAccount holds stakes. It must not be a participant.
	EscrowAccount string `koanf:"escrow_account" validate:"required,nefield=Owner"`

	// MinStake is the amount every registration locks.
	MinStake uint64 `koanf:"min_stake" validate:"gt=0"`

	// LockupPeriod is the number of heights a stake stays locked. Deployments
	// may lengthen it for testing networks, but a stake is always locked.
	LockupPeriod uint64 `koanf:"lockup_period" validate:"gte=1"`

	// BlockInterval is the wall time per height.
	BlockInterval time.Duration `koanf:"block_interval" validate:"gt=0"`

	// JWTSecret signs bearer tokens.
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=16"`

	// TokenTTL bounds the lifetime of minted tokens.
	TokenTTL time.Duration `koanf:"token_ttl" validate:"gt=0"`

	// GenesisBalances seeds the escrow bank.
	GenesisBalances map[string]uint64 `koanf:"genesis_balances"`

	// FaucetAmount, when positive, enables POST /dev/faucet crediting the caller.
	FaucetAmount uint64 `koanf:"faucet_amount"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// MaxLeaderboardLimit caps GET /rankings?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit" validate:"gt=0"`

	// IdempotencySize bounds the number of held idempotency keys; 0 is unbounded.
	IdempotencySize int `koanf:"idempotency_size" validate:"gte=0"`

	// IdempotencyTTL is how long an idempotency key is held.
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl" validate:"gte=0"`
}

// New returns a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		Store:               StoreMemory,
		DataDir:             "data",
		BadgerSyncWrites:    true,
		BadgerGCInterval:    5 * time.Minute,
		Owner:               "admin",
		EscrowAccount:       "escrow",
		MinStake:            1000,
		LockupPeriod:        100,
		BlockInterval:       time.Second,
		JWTSecret:           DevJWTSecret,
		TokenTTL:            24 * time.Hour,
		GenesisBalances:     map[string]uint64{},
		CORSAllowedOrigins:  []string{"*"},
		MaxLeaderboardLimit: 100,
		IdempotencySize:     100_000,
		IdempotencyTTL:      24 * time.Hour,
	}
	return c
}
