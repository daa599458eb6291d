package sms

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"slices"
	"strings"
)

// SignatureHeader carries the carrier's request signature on callbacks.
const SignatureHeader = "X-Twilio-Signature"

// Param is a single form field. Callback bodies may repeat a key, so
// signatures are computed over an ordered list rather than a map.
type Param struct {
	Key   string
	Value string
}

// Sign computes the carrier's callback signature: the URL followed by every
// key and value sorted by key, HMAC-SHA1 keyed by the auth token, then
// standard base64. Values of repeated keys keep their relative order.
func Sign(callbackURL string, params []Param, secret string) string {
	sorted := slices.Clone(params)
	slices.SortStableFunc(sorted, func(a, b Param) int {
		return strings.Compare(a.Key, b.Key)
	})

	var b strings.Builder
	b.WriteString(callbackURL)
	for _, p := range sorted {
		b.WriteString(p.Key)
		b.WriteString(p.Value)
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether candidate is the signature of params. The comparison
// runs in constant time.
func Verify(callbackURL string, params []Param, secret, candidate string) bool {
	expected := Sign(callbackURL, params, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}

// ParamsFromValues flattens a parsed form into params. Every value of a
// repeated key is kept, in received order.
func ParamsFromValues(values url.Values) []Param {
	params := make([]Param, 0, len(values))
	for key, vals := range values {
		for _, v := range vals {
			params = append(params, Param{Key: key, Value: v})
		}
	}
	return params
}
