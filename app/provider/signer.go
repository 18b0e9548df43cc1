package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signatureMethod  = "HmacSHA256"
	signatureVersion = "2"
	timestampLayout  = "2006-01-02T15:04:05Z"
)

// SignedRequest is the full parameter set of one API call. It is built fresh
// for every call; Signature is only valid for the Params it was computed from.
type SignedRequest struct {
	Action    string
	Params    map[string]string
	Timestamp time.Time
	Signature string
}

// Encode returns the form body, signature included, with keys sorted.
func (r *SignedRequest) Encode() string {
	params := make(map[string]string, len(r.Params)+1)
	for k, v := range r.Params {
		params[k] = v
	}
	if r.Signature != "" {
		params["Signature"] = r.Signature
	}
	return encodeParams(params)
}

// Sign computes the base64 HMAC-SHA256 signature of params for endpoint.
func Sign(endpoint string, params map[string]string, secretKey string) (string, error) {
	if secretKey == "" {
		return "", errors.New("secret key is required for signing")
	}
	msg, err := StringToSign(endpoint, params)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	_, _ = mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// StringToSign builds "POST\nhost\n/path\nparams". The Signature key is never
// part of the signed string.
func StringToSign(endpoint string, params map[string]string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("endpoint must be an absolute url")
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		segments[i] = percentEncode(segment)
	}

	signable := make(map[string]string, len(params))
	for k, v := range params {
		if k == "Signature" {
			continue
		}
		signable[k] = v
	}

	return "POST\n" + u.Host + "\n/" + strings.Join(segments, "/") + "\n" + encodeParams(signable), nil
}

func encodeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(percentEncode(k))
		b.WriteByte('=')
		b.WriteString(percentEncode(params[k]))
	}
	return b.String()
}

// percentEncode escapes per RFC 3986: unreserved characters, '~' included,
// stay literal and spaces become %20.
func percentEncode(value string) string {
	escaped := url.QueryEscape(value)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return strings.ReplaceAll(escaped, "%7E", "~")
}
