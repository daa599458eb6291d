package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notifyrelay/relay/internal/cli/ui"
	"github.com/notifyrelay/relay/internal/config"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersion is called from main to inject build-time version info.
func SetVersion(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

var rootCmd = &cobra.Command{
	Use:   "notify-relay",
	Short: "Stateless SMS notification relay",
	Long: `notify-relay accepts authenticated notification requests, delivers them
as SMS through Twilio, and verifies signed delivery-status callbacks.
It keeps no state: every outcome is a structured log event.

Get started:
  export NOTIFY_API_KEY=... TWILIO_ACCOUNT_SID=... TWILIO_AUTH_TOKEN=... TWILIO_FROM_NUMBER=...
  notify-relay check
  notify-relay start`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to relay.toml config file")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// hintError is a command error that carries fix suggestions for the
// terminal.
type hintError struct {
	err   error
	hints []string
}

func (e *hintError) Error() string { return e.err.Error() }
func (e *hintError) Unwrap() error { return e.err }

// FormatError renders a command error for the terminal, with fix hints for
// configuration problems and errors that carry their own.
func FormatError(err error) string {
	var hinted *hintError
	if errors.As(err, &hinted) {
		return ui.FormatError(err.Error(), hinted.hints...)
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return ui.FormatError(err.Error(),
			"set "+cfgErr.Name+" in the environment or relay.toml",
			"notify-relay check",
		)
	}
	return ui.FormatError(err.Error())
}

func loadConfig(cmd *cobra.Command, flags map[string]string) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
