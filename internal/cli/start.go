package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/notifyrelay/relay/internal/cli/ui"
	"github.com/notifyrelay/relay/internal/config"
	"github.com/notifyrelay/relay/internal/server"
	"github.com/notifyrelay/relay/internal/sms"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relay server",
	Long: `Start the notify-relay HTTP server in the foreground.
Configuration is merged from defaults, relay.toml, environment variables and
flags. Missing or placeholder secrets abort startup before the port is bound.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().String("host", "", "Host to bind (default 0.0.0.0)")
	startCmd.Flags().Int("port", 0, "Server port (default 8000)")
	startCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
}

func runStart(cmd *cobra.Command, args []string) error {
	flags := changedFlags(cmd.Flags(), "host", "port", "log-level")

	isTTY := ui.ColorEnabled()
	progress := io.Discard
	if isTTY {
		progress = os.Stderr
	}
	sp := ui.NewStepSpinner(progress, !isTTY)

	sp.Start("Validating configuration")
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		sp.Fail()
		return err
	}
	sp.Done()

	logger, closeLog, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	sp.Start("Binding " + cfg.Address())
	onReady := func() {
		sp.Done()
		if isTTY {
			printBannerTo(os.Stderr, cfg, true)
		}
	}
	if err := serve(ctx, cfg, logger, server.NewTwilioDispatcher(cfg, logger), onReady); err != nil {
		sp.Fail()
		return portError(cfg.Server.Port, err)
	}
	return nil
}

// changedFlags returns the values of the named flags that were set on the
// command line, keyed by flag name.
func changedFlags(fs *pflag.FlagSet, names ...string) map[string]string {
	out := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		if slices.Contains(names, f.Name) {
			out[f.Name] = f.Value.String()
		}
	})
	return out
}

// serve runs the relay until ctx is done or the listener fails. onReady, if
// set, is called once the port is bound.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, sender sms.Provider, onReady func()) error {
	srv := server.New(cfg, logger, sender)

	errCh := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		errCh <- srv.StartWithReady(ready)
	}()

	select {
	case <-ready:
	case err := <-errCh:
		return err
	}
	if onReady != nil {
		onReady()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// portError wraps common listen errors with actionable suggestions.
func portError(port int, err error) error {
	if strings.Contains(err.Error(), "address already in use") {
		return &hintError{
			err:   fmt.Errorf("port %d is already in use: %w", port, err),
			hints: []string{fmt.Sprintf("notify-relay start --port %d   # use a different port", port+1)},
		}
	}
	return err
}

// printBannerTo writes a human-readable startup summary to w. It is separate
// from structured logging.
func printBannerTo(w io.Writer, cfg *config.Config, useColor bool) {
	r := ui.Renderer(w, useColor)
	label := r.NewStyle().Bold(true)
	cyan := r.NewStyle().Foreground(ui.ColorCyan)
	dim := r.NewStyle().Faint(true)
	green := r.NewStyle().Foreground(ui.ColorGreen)

	base := fmt.Sprintf("http://%s", cfg.Address())

	// Pad labels before styling so ANSI codes don't break alignment.
	pad := func(s string) string { return label.Render(fmt.Sprintf("%-10s", s)) }

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", r.NewStyle().Bold(true).Foreground(ui.ColorCyan).Render("notify-relay"), dim.Render(buildVersion))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", pad("Notify:"), cyan.Render(base+"/notify"))
	if cfg.CallbackEnabled() {
		fmt.Fprintf(w, "  %s %s\n", pad("Callback:"), cyan.Render(cfg.Twilio.StatusCallbackURL))
	} else {
		fmt.Fprintf(w, "  %s %s\n", pad("Callback:"), dim.Render("disabled"))
	}
	fmt.Fprintf(w, "  %s %s\n", pad("Carrier:"), cfg.Twilio.APIBaseURL)
	fmt.Fprintf(w, "  %s %dms\n", pad("Timeout:"), cfg.Twilio.TimeoutMS)
	if len(cfg.Notify.AllowedCountries) > 0 {
		fmt.Fprintf(w, "  %s %s\n", pad("Countries:"), strings.Join(cfg.Notify.AllowedCountries, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", dim.Render("Try:"))
	fmt.Fprintf(w, "%s\n", green.Render(fmt.Sprintf(
		`curl -X POST %s/notify -H "X-Notify-Key: $NOTIFY_API_KEY" -H "Content-Type: application/json" -d '{"to":"+15005550006","subject":"hi","text":"hello"}'`, base)))
	fmt.Fprintln(w)
}
