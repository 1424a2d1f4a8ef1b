// Package telegram verifies Telegram WebApp launch payloads.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidInitData is returned when an initData payload fails verification.
var ErrInvalidInitData = errors.New("invalid init data")

// Verifier checks Telegram WebApp initData signatures. The secret key is
// HMAC_SHA256("WebAppData", botToken) per the WebApp docs.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given bot token.
func NewVerifier(botToken string) *Verifier {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &Verifier{secret: mac.Sum(nil)}
}

// Verify checks the hash field of a URL-encoded initData query string
// against the HMAC of the remaining fields.
func (v *Verifier) Verify(initData string) error {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}

	received := values.Get("hash")
	if received == "" {
		return fmt.Errorf("%w: missing hash", ErrInvalidInitData)
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(values[k], ","))
	}
	checkString := strings.Join(pairs, "\n")

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(checkString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(received)) {
		return ErrInvalidInitData
	}
	return nil
}
