package flutterwave

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"charge.completed","data":{"tx_ref":"cn-123"}}`)
	digest := sign(secret, body)

	cases := []struct {
		name      string
		signature string
		body      []byte
		want      bool
	}{
		{name: "hex digest", signature: hex.EncodeToString(digest), body: body, want: true},
		{name: "base64 digest", signature: base64.StdEncoding.EncodeToString(digest), body: body, want: true},
		{name: "hex with surrounding space", signature: " " + hex.EncodeToString(digest) + " ", body: body, want: true},
		{name: "tampered body", signature: hex.EncodeToString(digest), body: []byte(`{"event":"x"}`), want: false},
		{name: "wrong digest", signature: hex.EncodeToString(sign("other", body)), body: body, want: false},
		{name: "garbage signature", signature: "not-a-digest", body: body, want: false},
		{name: "empty signature", signature: "", body: body, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := VerifyWebhookSignature(secret, tc.body, tc.signature)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestVerifyWebhookSignatureRequiresSecret(t *testing.T) {
	body := []byte(`{}`)
	if VerifyWebhookSignature("", body, hex.EncodeToString(sign("", body))) {
		t.Fatalf("empty secret must fail closed")
	}
}
