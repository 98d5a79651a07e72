package coindcx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sign serializes body as compact JSON and returns the payload together with
// its hex-encoded HMAC-SHA256 signature keyed by secret. The payload must be
// sent byte-for-byte as returned.
func Sign(body any, secret string) ([]byte, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", err
	}
	return payload, SignPayload(payload, secret), nil
}

// SignPayload signs an already serialized payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
