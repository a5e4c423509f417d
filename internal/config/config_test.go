package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"STORE_BACKEND", "STORE_TIMEOUT", "LEDGER_TIMEOUT", "PIX_CODE_TTL", "PIX_REUSE_ACTIVE_CODE", "TIMEZONE"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.StoreBackend != StoreSQLite {
		t.Errorf("StoreBackend = %q, want sqlite", cfg.StoreBackend)
	}
	if cfg.StoreTimeout != 2*time.Second || cfg.LedgerTimeout != 2*time.Second {
		t.Errorf("timeouts = %v/%v, want 2s/2s", cfg.StoreTimeout, cfg.LedgerTimeout)
	}
	if cfg.PixCodeTTL != 30*time.Minute {
		t.Errorf("PixCodeTTL = %v, want 30m", cfg.PixCodeTTL)
	}
	if cfg.ReuseActiveCode {
		t.Error("ReuseActiveCode should default to false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("PIX_CODE_TTL", "10m")
	t.Setenv("PIX_REUSE_ACTIVE_CODE", "true")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("TIMEZONE", "Nowhere/Invalid")

	cfg := Load()
	if cfg.StoreBackend != StorePostgres {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.PixCodeTTL != 10*time.Minute {
		t.Errorf("PixCodeTTL = %v", cfg.PixCodeTTL)
	}
	if !cfg.ReuseActiveCode {
		t.Error("ReuseActiveCode should be true")
	}
	if cfg.RedisDB != 0 {
		t.Errorf("RedisDB = %d, want fallback 0", cfg.RedisDB)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("invalid timezone should fall back to UTC")
	}
}

func TestLoadDotEnv_EnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# local\nBOLETOPIX_TEST_A=from-file\nBOLETOPIX_TEST_B=\"quoted\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOLETOPIX_TEST_A", "from-env")
	t.Cleanup(func() { os.Unsetenv("BOLETOPIX_TEST_B") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("BOLETOPIX_TEST_A"); got != "from-env" {
		t.Errorf("A = %q, want from-env", got)
	}
	if got := os.Getenv("BOLETOPIX_TEST_B"); got != "quoted" {
		t.Errorf("B = %q, want quoted", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
