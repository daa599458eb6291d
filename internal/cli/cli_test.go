package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/notifyrelay/relay/internal/config"
	"github.com/notifyrelay/relay/internal/sms"
	"github.com/notifyrelay/relay/internal/testutil"
)

const testAuthToken = "tok-cli-5f4e3d2c"

func setSecretEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NOTIFY_API_KEY", "nk-cli-0a1b2c3d")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC00000000000000000000000000000001")
	t.Setenv("TWILIO_AUTH_TOKEN", testAuthToken)
	t.Setenv("TWILIO_FROM_NUMBER", "+15005550006")
	t.Setenv("TWILIO_STATUS_CALLBACK_URL", "https://relay.test/twilio/status")
	for _, name := range []string{"PORT", "RELAY_SERVER_PORT", "RELAY_SERVER_HOST", "NOTIFY_ALLOWED_COUNTRIES", "TWILIO_API_BASE_URL"} {
		t.Setenv(name, "")
	}
}

// execute runs the root command with args and returns what it wrote to stdout.
// Flag values persist on the shared command tree, so they are reset afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		rootCmd.PersistentFlags().Set("config", "")
		configCmd.Flags().Set("json", "false")
		versionCmd.Flags().Set("json", "false")
		signCmd.Flags().Set("url", "")
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	defer SetVersion("dev", "none", "unknown")
	testutil.Equal(t, "1.2.3", buildVersion)
	testutil.Equal(t, "abc123", buildCommit)
	testutil.Equal(t, "2026-01-01", buildDate)
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"start": false, "check": false, "config": false, "sign": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		testutil.True(t, found, "subcommand %q not registered", name)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("0.1.0", "deadbeef", "2026-02-07")
	defer SetVersion("dev", "none", "unknown")

	out, err := execute(t, "version")
	testutil.NoError(t, err)
	testutil.Contains(t, out, "notify-relay 0.1.0")
	testutil.Contains(t, out, "deadbeef")
}

func TestVersionCommandJSON(t *testing.T) {
	SetVersion("0.1.0", "deadbeef", "2026-02-07")
	defer SetVersion("dev", "none", "unknown")

	out, err := execute(t, "version", "--json")
	testutil.NoError(t, err)
	var got map[string]string
	testutil.NoError(t, json.Unmarshal([]byte(out), &got))
	testutil.Equal(t, "0.1.0", got["version"])
	testutil.Equal(t, "deadbeef", got["commit"])
	testutil.Equal(t, "2026-02-07", got["date"])
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	setSecretEnv(t)

	out, err := execute(t, "config")
	testutil.NoError(t, err)
	testutil.Contains(t, out, "[twilio]")
	testutil.Contains(t, out, "+15005550006")
	testutil.False(t, strings.Contains(out, testAuthToken), "auth token leaked: %s", out)
	testutil.False(t, strings.Contains(out, "nk-cli-0a1b2c3d"), "notify key leaked: %s", out)
}

func TestConfigCommandJSON(t *testing.T) {
	setSecretEnv(t)

	out, err := execute(t, "config", "--json")
	testutil.NoError(t, err)
	var got config.Config
	testutil.NoError(t, json.Unmarshal([]byte(out), &got))
	testutil.Equal(t, "********", got.Twilio.AuthToken)
	testutil.Equal(t, "https://relay.test/twilio/status", got.Twilio.StatusCallbackURL)
	testutil.Equal(t, 8000, got.Server.Port)
}

func TestConfigCommandFromFile(t *testing.T) {
	setSecretEnv(t)
	path := filepath.Join(t.TempDir(), "relay.toml")
	testutil.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9100\n"), 0o600))

	out, err := execute(t, "config", "--config", path)
	testutil.NoError(t, err)
	testutil.Contains(t, out, "port = 9100")
}

func TestCheckCommand(t *testing.T) {
	setSecretEnv(t)
	t.Setenv("NOTIFY_ALLOWED_COUNTRIES", "us, gb")

	out, err := execute(t, "check")
	testutil.NoError(t, err)
	testutil.Contains(t, out, "configuration OK")
	testutil.Contains(t, out, "0.0.0.0:8000")
	testutil.Contains(t, out, "https://relay.test/twilio/status")
	testutil.Contains(t, out, "US,GB")
}

func TestCheckCommandFailsOnPlaceholder(t *testing.T) {
	setSecretEnv(t)
	t.Setenv("TWILIO_AUTH_TOKEN", "replace-with-twilio-auth-token")

	_, err := execute(t, "check")
	var cfgErr *config.ConfigError
	testutil.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
	testutil.Equal(t, "TWILIO_AUTH_TOKEN", cfgErr.Name)
}

func TestSignCommandMatchesSigner(t *testing.T) {
	setSecretEnv(t)

	out, err := execute(t, "sign", "MessageSid=SM1", "MessageStatus=delivered", "To=+12025550123")
	testutil.NoError(t, err)

	want := sms.Sign("https://relay.test/twilio/status", []sms.Param{
		{Key: "MessageSid", Value: "SM1"},
		{Key: "MessageStatus", Value: "delivered"},
		{Key: "To", Value: "+12025550123"},
	}, testAuthToken)
	testutil.Equal(t, want, strings.TrimSpace(out))
}

func TestSignCommandURLOverride(t *testing.T) {
	setSecretEnv(t)

	out, err := execute(t, "sign", "--url", "https://other.test/cb", "Body=a=b")
	testutil.NoError(t, err)

	want := sms.Sign("https://other.test/cb", []sms.Param{{Key: "Body", Value: "a=b"}}, testAuthToken)
	testutil.Equal(t, want, strings.TrimSpace(out))
}

func TestSignCommandErrors(t *testing.T) {
	setSecretEnv(t)

	_, err := execute(t, "sign", "novalue")
	testutil.ErrorContains(t, err, `invalid parameter "novalue"`)

	t.Setenv("TWILIO_STATUS_CALLBACK_URL", "")
	_, err = execute(t, "sign", "A=1")
	testutil.ErrorContains(t, err, "no URL to sign")
}

func TestFormatErrorConfigHint(t *testing.T) {
	err := fmt.Errorf("loading config: %w", &config.ConfigError{Name: "NOTIFY_API_KEY", Reason: "is required and cannot be blank"})
	out := FormatError(err)
	testutil.Contains(t, out, "NOTIFY_API_KEY is required")
	testutil.Contains(t, out, "set NOTIFY_API_KEY in the environment or relay.toml")

	plain := FormatError(errors.New("boom"))
	testutil.Contains(t, plain, "boom")
	testutil.False(t, strings.Contains(plain, "Try:"), "unexpected hint in %q", plain)
}

func TestPortError(t *testing.T) {
	cause := errors.New("listen: listen tcp :8000: bind: address already in use")
	err := portError(8000, cause)
	testutil.Contains(t, err.Error(), "port 8000 is already in use")
	testutil.True(t, errors.Is(err, cause), "cause not wrapped")

	out := FormatError(err)
	testutil.Contains(t, out, "--port 8001")
	testutil.Equal(t, 1, strings.Count(out, "Error:"))

	other := errors.New("permission denied")
	testutil.Equal(t, other, portError(80, other))
}

func TestBannerTryExampleIsValidNotifyBody(t *testing.T) {
	var buf bytes.Buffer
	printBannerTo(&buf, config.Default(), false)
	out := buf.String()
	start := strings.Index(out, "-d '")
	testutil.True(t, start >= 0, "no curl body in banner: %s", out)
	body := out[start+len("-d '"):]
	body = body[:strings.Index(body, "'")]

	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Text    string `json:"text"`
	}
	testutil.NoError(t, json.Unmarshal([]byte(body), &req))
	testutil.NotEqual(t, "", req.To)
	testutil.NotEqual(t, "", req.Subject)
	testutil.NotEqual(t, "", req.Text)
}

func TestBannerPlainText(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Notify.AllowedCountries = []string{"US"}

	var buf bytes.Buffer
	printBannerTo(&buf, cfg, false)
	out := buf.String()
	testutil.Contains(t, out, "http://127.0.0.1:8000/notify")
	testutil.Contains(t, out, "disabled")
	testutil.Contains(t, out, "5000ms")
	testutil.Contains(t, out, "US")
	testutil.False(t, strings.Contains(out, "\x1b["), "plain banner contains ANSI codes")

	cfg.Twilio.StatusCallbackURL = "https://relay.test/twilio/status"
	buf.Reset()
	printBannerTo(&buf, cfg, false)
	testutil.Contains(t, buf.String(), "https://relay.test/twilio/status")
}

type noopSender struct{}

func (noopSender) Send(context.Context, string, string) (*sms.SendResult, error) {
	return &sms.SendResult{MessageSID: "SMnoop"}, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	testutil.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestServeStopsOnContextCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, cfg, testutil.DiscardLogger(), noopSender{}, func() { close(ready) })
	}()

	select {
	case <-ready:
	case err := <-errCh:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	resp, err := http.Get((&url.URL{Scheme: "http", Host: cfg.Address(), Path: "/health"}).String())
	testutil.NoError(t, err)
	resp.Body.Close()
	testutil.StatusCode(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		testutil.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServePortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	testutil.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port

	called := false
	err = serve(context.Background(), cfg, testutil.DiscardLogger(), noopSender{}, func() { called = true })
	testutil.ErrorContains(t, err, "listen")
	testutil.False(t, called, "onReady called for a failed listener")
}

func TestChangedFlagsOnlyReportsSetFlags(t *testing.T) {
	fs := pflag.NewFlagSet("start", pflag.ContinueOnError)
	fs.String("host", "", "")
	fs.Int("port", 0, "")
	fs.String("log-level", "", "")
	fs.String("other", "", "")
	testutil.NoError(t, fs.Parse([]string{"--port", "9001", "--other", "x"}))

	got := changedFlags(fs, "host", "port", "log-level")
	testutil.MapLen(t, got, 1)
	testutil.Equal(t, "9001", got["port"])
}
