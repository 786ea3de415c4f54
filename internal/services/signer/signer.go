package signer

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"hubon-pickup/pkg/errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Header names are a compatibility contract with the HubOn platform.
const (
	HeaderContentType   = "Content-Type"
	HeaderRequestDate   = "Request-Date"
	HeaderSignature     = "HubOn-Signature"
	HeaderEncodedUserID = "Encoded-User-ID"
	HeaderClientID      = "HubOn-Client-ID"
)

// Signer produces the HubOn-Signature value for an outbound request.
type Signer interface {
	Sign(req SignatureRequest) (string, error)
}

// SignatureRequest is built fresh for every outbound call. Timestamp must be
// the exact string later sent as Request-Date.
type SignatureRequest struct {
	Method    string
	URL       string
	Body      string
	Timestamp string
	APIKey    string
}

// NewSignatureRequest stamps the request with now in HTTP-date form.
func NewSignatureRequest(method, url, body, apiKey string, now time.Time) SignatureRequest {
	return SignatureRequest{
		Method:    strings.ToUpper(method),
		URL:       url,
		Body:      body,
		Timestamp: now.UTC().Format(http.TimeFormat),
		APIKey:    apiKey,
	}
}

// HMACSigner signs requests with HMAC-SHA512 keyed by the merchant API key.
type HMACSigner struct{}

// NewHMACSigner creates a new HMAC signer
func NewHMACSigner() *HMACSigner {
	return &HMACSigner{}
}

// Sign computes base64url(HMAC-SHA512(apiKey, UPPER(method:url:body) + ":" + timestamp)).
// Whitespace is stripped from the body before it enters the payload.
func (s *HMACSigner) Sign(req SignatureRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	payload := CanonicalPayload(req)
	mac := hmac.New(sha512.New, []byte(req.APIKey))
	mac.Write([]byte(payload))

	return urlSafe(base64.StdEncoding.EncodeToString(mac.Sum(nil))), nil
}

// CanonicalPayload returns the exact string that is fed into the HMAC.
// Uppercasing uses full Unicode case mapping, so "ß" becomes "SS".
func CanonicalPayload(req SignatureRequest) string {
	// Casers carry state and are not shared between goroutines.
	upper := cases.Upper(language.Und)
	data := upper.String(req.Method + ":" + req.URL + ":" + stripWhitespace(req.Body))
	return data + ":" + req.Timestamp
}

// IdentityToken returns the part of apiKey before the first dash, or the
// whole key when it has none.
func IdentityToken(apiKey string) string {
	if i := strings.IndexByte(apiKey, '-'); i >= 0 {
		return apiKey[:i]
	}
	return apiKey
}

// Headers builds the header set for a signed call. The Request-Date value is
// taken from req so it always matches what was signed.
func Headers(req SignatureRequest, signature, clientID string) http.Header {
	h := make(http.Header, 5)
	h.Set(HeaderContentType, "application/json")
	h.Set(HeaderRequestDate, req.Timestamp)
	h.Set(HeaderSignature, signature)
	h.Set(HeaderEncodedUserID, IdentityToken(req.APIKey))
	h.Set(HeaderClientID, clientID)
	return h
}

func (r SignatureRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Method) == "":
		return errors.NewDomainError(errors.CodeSigningInput, "signing input invalid", "method is required")
	case strings.TrimSpace(r.URL) == "":
		return errors.NewDomainError(errors.CodeSigningInput, "signing input invalid", "url is required")
	case r.APIKey == "":
		return errors.NewDomainError(errors.CodeSigningInput, "signing input invalid", "api key is required")
	}
	return nil
}

// isBodySpace reports whether r is stripped from the body before signing.
// The set is the ECMAScript WhiteSpace and LineTerminator characters; U+0085
// is not part of it.
func isBodySpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00A0', '\u1680', '\u2028', '\u2029', '\u202F', '\u205F', '\u3000', '\uFEFF':
		return true
	}
	return r >= '\u2000' && r <= '\u200A'
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if isBodySpace(r) {
			return -1
		}
		return r
	}, s)
}

// urlSafe maps the standard base64 alphabet to the one the carrier verifies:
// '+' -> '-', '/' -> '_' and padding '=' -> '.'.
func urlSafe(s string) string {
	return strings.NewReplacer("+", "-", "/", "_", "=", ".").Replace(s)
}
