package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
)

// SignatureParam is the form field carrying the HMAC.
const SignatureParam = "s"

// Signer implements the gateway's request signature: keys sorted
// lexicographically, each key immediately followed by its value, HMAC-SHA256
// over the concatenation with the shared secret, hex encoded.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign ignores any existing signature parameter.
func (s *Signer) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignatureParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over every received field except the
// signature itself and compares in constant time.
func (s *Signer) Verify(params map[string]string) error {
	got, ok := params[SignatureParam]
	if !ok || got == "" {
		return errutil.InvalidSignature("signature missing")
	}

	want := s.Sign(params)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(got))) {
		return errutil.InvalidSignature("signature mismatch")
	}
	return nil
}

// VerifyForm verifies a decoded form body. Repeated fields are rejected
// because the canonical form has one value per key.
func (s *Signer) VerifyForm(values url.Values) (map[string]string, error) {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) != 1 {
			return nil, errutil.InvalidSignature("repeated form field " + k)
		}
		params[k] = v[0]
	}
	if err := s.Verify(params); err != nil {
		return nil, err
	}
	delete(params, SignatureParam)
	return params, nil
}
