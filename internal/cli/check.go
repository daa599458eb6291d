package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notifyrelay/relay/internal/cli/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration without starting the server",
	Long: `Load and validate the relay configuration the same way start does,
then print a short summary. Exits non-zero on any configuration error.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	useColor := ui.ColorEnabled()
	var progress io.Writer = io.Discard
	if useColor {
		progress = cmd.ErrOrStderr()
	}
	sp := ui.NewStepSpinner(progress, !useColor)

	sp.Start("Validating configuration")
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		sp.Fail()
		return err
	}
	sp.Done()

	callback := "disabled"
	if cfg.CallbackEnabled() {
		callback = cfg.Twilio.StatusCallbackURL
	}
	countries := "any"
	if len(cfg.Notify.AllowedCountries) > 0 {
		countries = strings.Join(cfg.Notify.AllowedCountries, ",")
	}

	r := ui.Renderer(out, useColor)
	fmt.Fprintf(out, "%s configuration OK\n", r.NewStyle().Foreground(ui.ColorGreen).Render(ui.SymbolCheck))
	fmt.Fprintf(out, "  listen:    %s\n", cfg.Address())
	fmt.Fprintf(out, "  carrier:   %s\n", cfg.Twilio.APIBaseURL)
	fmt.Fprintf(out, "  timeout:   %dms\n", cfg.Twilio.TimeoutMS)
	fmt.Fprintf(out, "  callback:  %s\n", callback)
	fmt.Fprintf(out, "  countries: %s\n", countries)
	return nil
}
