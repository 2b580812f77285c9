package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/securewipe/wipe-agent/internal/config"
	"github.com/securewipe/wipe-agent/pkg/errors"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wipe-agent",
	Short: "Remote disk sanitization agent",
	Long: `Registers this machine with the wipe control plane, waits for an authorized
wipe command, and erases the requested target once it passes the local safety gate.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "config load failed")
		}
		if err := loaded.Validate(); err != nil {
			return errors.Wrap(err, "config invalid")
		}
		cfg = loaded
		initLogger(cfg.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("server-url", "https://securewipe-backend.onrender.com/api", "Control plane base URL")
	rootCmd.PersistentFlags().Duration("poll-interval", 5*time.Second, "Delay between command polls")
	rootCmd.PersistentFlags().String("machine-id", "", "Pin the machine identity instead of deriving it from hardware")
	rootCmd.PersistentFlags().Bool("demo-mode", false, "Replace every server target with the safe test target")
	rootCmd.PersistentFlags().String("safe-target", "dummy_disk.txt", "Safe test target used in demo mode")
	rootCmd.PersistentFlags().String("safety-policy", "allowlist", "Safety policy: allowlist, inventory or strict")
	rootCmd.PersistentFlags().StringSlice("allowed-targets", []string{"dummy_disk.txt"}, "Targets the allow-list policy permits")
	rootCmd.PersistentFlags().String("sqlite-path", ".artifacts/wipe-agent.db", "SQLite journal path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm", "FSM state directory")
	rootCmd.PersistentFlags().String("evidence-bucket", "", "S3 bucket for run records (disabled when empty)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	for _, name := range []string{
		"server-url", "poll-interval", "machine-id", "demo-mode", "safe-target", "safety-policy",
		"allowed-targets", "sqlite-path", "fsm-db-path", "evidence-bucket", "log-level",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}
