package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AVas112/MainBot/internal/profile"
	"github.com/AVas112/MainBot/server"
	"github.com/AVas112/MainBot/store"
	"github.com/AVas112/MainBot/store/db"
)

const greetingBanner = `mainbot - conversation run orchestrator`

var rootCmd = &cobra.Command{
	Use:   "mainbot",
	Short: "Conversation run orchestrator for the hosted assistant service",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := profile.Default()
		instanceProfile.FromEnv()

		// Flags take precedence over environment variables.
		if viper.IsSet("mode") {
			instanceProfile.Mode = viper.GetString("mode")
		}
		if viper.IsSet("addr") {
			instanceProfile.Addr = viper.GetString("addr")
		}
		if viper.IsSet("port") {
			instanceProfile.Port = viper.GetInt("port")
		}
		if viper.IsSet("data") {
			instanceProfile.Data = viper.GetString("data")
		}
		if viper.IsSet("driver") {
			instanceProfile.Driver = viper.GetString("driver")
		}
		if viper.IsSet("dsn") {
			instanceProfile.DSN = viper.GetString("dsn")
		}

		if err := instanceProfile.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		setupLogger(instanceProfile)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			return fmt.Errorf("failed to create db driver: %w", err)
		}
		storeInstance := store.New(dbDriver, instanceProfile)

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		fmt.Println(greetingBanner)
		slog.Info("configuration loaded", "profile", instanceProfile)

		err = s.Start(ctx)
		s.Shutdown()
		return err
	},
}

func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("mainbot")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
