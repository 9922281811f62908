package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"budgetplaner/internal/config"
	applog "budgetplaner/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("BUDGET_CLI_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BUDGET_CLI_TEST_KEY", "")
	os.Unsetenv("BUDGET_CLI_TEST_KEY")

	LoadEnvFile(path)
	if got := os.Getenv("BUDGET_CLI_TEST_KEY"); got != "from-file" {
		t.Errorf("BUDGET_CLI_TEST_KEY = %q", got)
	}

	// Missing files are not fatal.
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadEnvFileKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("BUDGET_CLI_TEST_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BUDGET_CLI_TEST_KEEP", "from-env")

	LoadEnvFile(path)
	if got := os.Getenv("BUDGET_CLI_TEST_KEEP"); got != "from-env" {
		t.Errorf("BUDGET_CLI_TEST_KEEP = %q, want the process value", got)
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, applog.ComponentWorker)
	if logger.Component() != applog.ComponentWorker {
		t.Errorf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), -4) {
		t.Error("debug level not enabled")
	}
}
