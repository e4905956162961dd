package logger

import (
	"context"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	// Test development mode
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize development logger: %v", err)
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

	// Test production mode
	err = Init()
	if err != nil {
		t.Fatalf("failed to initialize production logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger = Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}
}

// Basic logging test (slog-backed; no Sugar)
func TestLoggerBasic(t *testing.T) {
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
		t.Fatal("logger is nil")
	}

	ctx := context.Background()
	logger.Info(ctx, "test message", String("k", "v"))
}

func TestLoggerNamed(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	ctx := context.Background()
	namedLogger.Info(ctx, "test message")
}

func TestFieldConstructors(t *testing.T) {
	cases := []struct {
		field Field
		key   string
		value interface{}
	}{
		{String("participant", "alice"), "participant", "alice"},
		{Int("limit", 10), "limit", 10},
		{Uint64("model_id", 7), "model_id", uint64(7)},
		{Bool("active", true), "active", true},
		{Float64("ratio", 0.5), "ratio", 0.5},
	}
	for _, c := range cases {
		if c.field.Key != c.key || c.field.Value != c.value {
			t.Errorf("unexpected field %+v, want %s=%v", c.field, c.key, c.value)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	for _, level := range []string{"debug", "info", "", "WARN", "warning", "error"} {
		if err := SetLevelString(level); err != nil {
			t.Errorf("level %q rejected: %v", level, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
