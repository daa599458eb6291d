package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notifyrelay/relay/internal/sms"
)

var signCmd = &cobra.Command{
	Use:   "sign [key=value ...]",
	Short: "Compute a status-callback signature",
	Long: `Compute the X-Twilio-Signature value for a callback with the given form
fields, keyed by the configured auth token. Useful for replaying callbacks
against a running relay:

  sig=$(notify-relay sign MessageSid=SM123 MessageStatus=delivered)
  curl -X POST "$TWILIO_STATUS_CALLBACK_URL" -H "X-Twilio-Signature: $sig" \
    -d MessageSid=SM123 -d MessageStatus=delivered`,
	RunE: runSign,
}

func init() {
	signCmd.Flags().String("url", "", "Callback URL to sign (default: configured status callback URL)")
}

func runSign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	target, _ := cmd.Flags().GetString("url")
	if target == "" {
		target = cfg.Twilio.StatusCallbackURL
	}
	if target == "" {
		return fmt.Errorf("no URL to sign: pass --url or set TWILIO_STATUS_CALLBACK_URL")
	}

	params, err := parseParams(args)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sms.Sign(target, params, cfg.Twilio.AuthToken))
	return nil
}

func parseParams(args []string) ([]sms.Param, error) {
	params := make([]sms.Param, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", arg)
		}
		params = append(params, sms.Param{Key: key, Value: value})
	}
	return params, nil
}
