package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"budgetplaner/internal/cli"
	"budgetplaner/internal/config"
	applog "budgetplaner/internal/log"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "budgetctl",
		Short: "Operator tool for the budget planner",
		Long: `budgetctl manages the budget planner database from the command line:
schema migrations, user administration, data import and export, and
manual runs of the recurring transaction scheduler.

Settings come from the same environment variables as the server, from an
optional YAML config file, and from flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./budgetctl.yaml)")
	rootCmd.PersistentFlags().String("backend", config.BackendSQLite, "data backend (sqlite, memory)")
	rootCmd.PersistentFlags().String("db", "./data/budget.db", "SQLite database path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("data_backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("sqlite_db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.SetDefault("bcrypt_cost", 10)

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(recurringCmd())
}

func main() {
	ctx, stop := cli.SignalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("budgetctl")
		viper.SetConfigType("yaml")
	}

	// DATA_BACKEND, SQLITE_DB_PATH and friends, as for the server.
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cli.SetupLogger(appConfig(), applog.ComponentApp)
	return nil
}

// appConfig maps the viper view onto the shared config struct.
func appConfig() *config.Config {
	return &config.Config{
		DataBackend:  viper.GetString("data_backend"),
		SQLiteDBPath: viper.GetString("sqlite_db_path"),
		BcryptCost:   viper.GetInt("bcrypt_cost"),
		LogLevel:     viper.GetString("log_level"),
		LogFormat:    viper.GetString("log_format"),
	}
}

// openStore opens the configured backend. The caller must Close the
// returned handle.
func openStore(ctx context.Context) (*backendHandle, error) {
	cfg := appConfig()
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return newBackendHandle(ctx, cfg)
}
