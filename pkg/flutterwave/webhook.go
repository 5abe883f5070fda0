package flutterwave

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// WebhookNotification is the subset of the webhook body the reconciler
// trusts. Everything else is re-fetched from the gateway by reference.
type WebhookNotification struct {
	Event string `json:"event"`
	Data  struct {
		ID     int64  `json:"id"`
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

// VerifyWebhookSignature checks an HMAC-SHA256 signature over the raw request
// body. Gateways disagree on digest encoding, so both hex and base64 are
// accepted. Comparison is constant time.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	provided, ok := decodeSignature(strings.TrimSpace(signature))
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

func decodeSignature(signature string) ([]byte, bool) {
	if raw, err := hex.DecodeString(signature); err == nil && len(raw) == sha256.Size {
		return raw, true
	}
	if raw, err := base64.StdEncoding.DecodeString(signature); err == nil && len(raw) == sha256.Size {
		return raw, true
	}
	return nil, false
}
