package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

// TwilioConfig holds the carrier account settings used by TwilioDispatcher.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	BaseURL           string // empty means the production API
	StatusCallbackURL string // empty means no delivery callbacks
	Timeout           time.Duration
}

// TwilioDispatcher sends SMS via the Twilio REST API. It never retries and
// never logs the message body.
type TwilioDispatcher struct {
	cfg      TwilioConfig
	endpoint string
	poster   FormPoster
	logger   *slog.Logger
}

// NewTwilioDispatcher creates a TwilioDispatcher. A nil poster uses an
// HTTPFormPoster over a fresh client; a nil logger uses slog.Default().
func NewTwilioDispatcher(cfg TwilioConfig, poster FormPoster, logger *slog.Logger) *TwilioDispatcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if poster == nil {
		poster = NewHTTPFormPoster(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioDispatcher{
		cfg:      cfg,
		endpoint: fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", cfg.BaseURL, url.PathEscape(cfg.AccountSID)),
		poster:   poster,
		logger:   logger,
	}
}

// Send submits one message. Failures are returned as *DispatchError after
// the matching event has been logged.
func (d *TwilioDispatcher) Send(ctx context.Context, to, body string) (*SendResult, error) {
	form := url.Values{}
	form.Set("From", d.cfg.FromNumber)
	form.Set("To", to)
	form.Set("Body", body)
	if d.cfg.StatusCallbackURL != "" {
		form.Set("StatusCallback", d.cfg.StatusCallbackURL)
	}

	masked := MaskPhone(to)
	auth := BasicAuth{Username: d.cfg.AccountSID, Password: d.cfg.AuthToken}

	status, respBody, err := d.poster.PostForm(ctx, d.endpoint, form, auth, d.cfg.Timeout)
	if err != nil {
		if isTimeout(err) {
			d.logger.Error("twilio_sms_timeout", "event", "twilio_sms_timeout", "to", masked)
			return nil, &DispatchError{Kind: KindProviderTimeout, Err: err}
		}
		d.logger.Error("twilio_sms_request_error", "event", "twilio_sms_request_error", "to", masked)
		return nil, &DispatchError{Kind: KindProviderUnavailable, Err: err}
	}

	// Carrier bodies are best-effort JSON; anything else parses as empty.
	var parsed map[string]any
	if json.Unmarshal(respBody, &parsed) != nil {
		parsed = nil
	}

	if status >= 400 {
		derr := &DispatchError{
			Kind:            KindProviderRejected,
			StatusCode:      status,
			ProviderCode:    jsonString(parsed["code"]),
			ProviderMessage: jsonString(parsed["message"]),
		}
		d.logger.Error("twilio_sms_failed",
			"event", "twilio_sms_failed",
			"to", masked,
			"statusCode", status,
			"providerCode", derr.ProviderCode,
			"providerMessage", derr.ProviderMessage,
		)
		return nil, derr
	}

	sid := jsonString(parsed["sid"])
	d.logger.Info("twilio_sms_sent", "event", "twilio_sms_sent", "to", masked, "providerMessageSid", sid)
	return &SendResult{MessageSID: sid}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// jsonString renders a decoded JSON value as text. Absent values and null
// render as "".
func jsonString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
