package sms_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/notifyrelay/relay/internal/sms"
)

const (
	testCallbackURL = "https://relay.acme.io/twilio/status"
	testAuthToken   = "tok_8d7e6f5a"
)

func deliveryParams() []sms.Param {
	return []sms.Param{
		{Key: "MessageSid", Value: "SM123"},
		{Key: "MessageStatus", Value: "delivered"},
		{Key: "To", Value: "+12025550123"},
		{Key: "AccountSid", Value: "AC1234567890abcdef"},
	}
}

func TestSignKnownVector(t *testing.T) {
	// Worked example from the carrier's webhook security documentation.
	params := []sms.Param{
		{Key: "CallSid", Value: "CA1234567890ABCDE"},
		{Key: "Caller", Value: "+12349013030"},
		{Key: "Digits", Value: "1234"},
		{Key: "From", Value: "+12349013030"},
		{Key: "To", Value: "+18005551212"},
	}
	got := sms.Sign("https://mycompany.com/myapp.php?foo=1&bar=2", params, "12345")
	assert.Equal(t, "0/KCTR6DLpKmkAf8muzZqo1nDgQ=", got)
}

func TestSignIsOrderIndependent(t *testing.T) {
	params := deliveryParams()
	reversed := make([]sms.Param, len(params))
	for i, p := range params {
		reversed[len(params)-1-i] = p
	}

	assert.Equal(t,
		sms.Sign(testCallbackURL, params, testAuthToken),
		sms.Sign(testCallbackURL, reversed, testAuthToken),
	)
}

func TestSignDoesNotMutateInput(t *testing.T) {
	params := deliveryParams()
	before := append([]sms.Param(nil), params...)
	sms.Sign(testCallbackURL, params, testAuthToken)
	assert.Equal(t, before, params)
}

func TestSignKeepsDuplicateKeyOrder(t *testing.T) {
	a := []sms.Param{{Key: "K", Value: "1"}, {Key: "A", Value: "x"}, {Key: "K", Value: "2"}}
	b := []sms.Param{{Key: "K", Value: "2"}, {Key: "A", Value: "x"}, {Key: "K", Value: "1"}}

	// Canonical strings "...AxK1K2" and "...AxK2K1".
	assert.NotEqual(t, sms.Sign(testCallbackURL, a, testAuthToken), sms.Sign(testCallbackURL, b, testAuthToken))

	c := []sms.Param{{Key: "K", Value: "12"}, {Key: "K", Value: "3"}}
	d := []sms.Param{{Key: "K", Value: "3"}, {Key: "K", Value: "12"}}
	assert.NotEqual(t, sms.Sign(testCallbackURL, c, testAuthToken), sms.Sign(testCallbackURL, d, testAuthToken))
}

func TestSignConcatenatesWithoutSeparators(t *testing.T) {
	// Both canonicalize to "...K1K2".
	split := []sms.Param{{Key: "K", Value: "1"}, {Key: "K", Value: "2"}}
	joined := []sms.Param{{Key: "K", Value: "1K2"}}
	assert.Equal(t, sms.Sign(testCallbackURL, split, testAuthToken), sms.Sign(testCallbackURL, joined, testAuthToken))
}

func TestSignDependsOnURLAndSecret(t *testing.T) {
	params := deliveryParams()
	base := sms.Sign(testCallbackURL, params, testAuthToken)
	assert.NotEqual(t, base, sms.Sign(testCallbackURL+"/", params, testAuthToken))
	assert.NotEqual(t, base, sms.Sign(testCallbackURL, params, testAuthToken+"x"))
	assert.NotEqual(t, base, sms.Sign(testCallbackURL, params[:3], testAuthToken))
}

func TestVerifyRoundTrip(t *testing.T) {
	params := deliveryParams()
	sig := sms.Sign(testCallbackURL, params, testAuthToken)
	assert.True(t, sms.Verify(testCallbackURL, params, testAuthToken, sig))
}

func TestVerifyRejectsAnyFlippedByte(t *testing.T) {
	params := deliveryParams()
	sig := sms.Sign(testCallbackURL, params, testAuthToken)
	for i := range len(sig) {
		tampered := []byte(sig)
		tampered[i] ^= 0x01
		assert.False(t, sms.Verify(testCallbackURL, params, testAuthToken, string(tampered)), "flipped byte %d accepted", i)
	}
	assert.False(t, sms.Verify(testCallbackURL, params, testAuthToken, ""))
	assert.False(t, sms.Verify(testCallbackURL, params, testAuthToken, sig+"="))
}

func TestSignMatchesCarrierValidator(t *testing.T) {
	params := deliveryParams()
	sig := sms.Sign(testCallbackURL, params, testAuthToken)

	asMap := make(map[string]string, len(params))
	for _, p := range params {
		asMap[p.Key] = p.Value
	}
	validator := twilioclient.NewRequestValidator(testAuthToken)
	assert.True(t, validator.Validate(testCallbackURL, asMap, sig))
	assert.False(t, validator.Validate(testCallbackURL, asMap, sms.Sign(testCallbackURL, params, "other-token")))
}

func TestParamsFromValues(t *testing.T) {
	form, err := url.ParseQuery("MessageSid=SM1&K=b&K=a&Empty=")
	require.NoError(t, err)

	params := sms.ParamsFromValues(form)
	require.Len(t, params, 4)

	var ks []string
	for _, p := range params {
		if p.Key == "K" {
			ks = append(ks, p.Value)
		}
	}
	assert.Equal(t, []string{"b", "a"}, ks)
	assert.Contains(t, params, sms.Param{Key: "Empty", Value: ""})

	sig := sms.Sign(testCallbackURL, params, testAuthToken)
	assert.True(t, sms.Verify(testCallbackURL, sms.ParamsFromValues(form), testAuthToken, sig))
}
