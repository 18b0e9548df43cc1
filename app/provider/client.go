package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/factory"
	"golang.org/x/time/rate"
)

const defaultVersion = "2013-01-01"

// bareErrorCodes are returned by the provider as a plain text line instead of
// an ErrorResponse document.
var bareErrorCodes = []string{CodeInvalidOrderReferenceStatus}

// Credentials identify the seller account. They never change for a client.
type Credentials struct {
	AccessKey string
	SecretKey string
	SellerID  string
}

type ClientConfig struct {
	Credentials
	Endpoint          string
	Version           string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	RequestBurst      int
}

// CallRecorder archives the raw request URL and response body of every call
// that received a response. The returned id is handed back to the caller.
type CallRecorder interface {
	RecordCall(ctx context.Context, requestURL string, responseBody []byte) (uint64, error)
}

// CallResult holds the outcome of one API call. Document is nil when the
// response was not parsed.
type CallResult struct {
	Document *Document
	Raw      []byte
	RecordID uint64
}

type Client struct {
	cfg     ClientConfig
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
	logger  logrus.FieldLogger
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = defaultVersion
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.RequestBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
		logger:  factory.NewModuleLogger("amazon-payments-client"),
	}
}

func (c *Client) SellerID() string {
	return c.cfg.SellerID
}

// NewRequest adds the required parameters to params and signs the result.
// params is not modified.
func (c *Client) NewRequest(action string, params map[string]string) (*SignedRequest, error) {
	if strings.TrimSpace(c.cfg.AccessKey) == "" || strings.TrimSpace(c.cfg.SecretKey) == "" || strings.TrimSpace(c.cfg.SellerID) == "" {
		return nil, ErrNotConfigured
	}

	ts := c.now().UTC().Truncate(time.Second)
	all := map[string]string{
		"AWSAccessKeyId":   c.cfg.AccessKey,
		"SignatureMethod":  signatureMethod,
		"SignatureVersion": signatureVersion,
		"Version":          c.cfg.Version,
		"Timestamp":        ts.Format(timestampLayout),
		"SellerId":         c.cfg.SellerID,
	}
	for k, v := range params {
		all[k] = v
	}
	all["Action"] = action

	signature, err := Sign(c.cfg.Endpoint, all, c.cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	return &SignedRequest{
		Action:    action,
		Params:    all,
		Timestamp: ts,
		Signature: signature,
	}, nil
}

// Call performs one signed POST. It never retries. HTTP errors become a
// *ProviderError in both modes. When parse is false the raw body is returned
// as is.
func (c *Client) Call(ctx context.Context, action string, params map[string]string, parse bool, recorder CallRecorder) (*CallResult, error) {
	l := c.logger.WithField("action", action)
	l.Infof("Performing %s action", action)

	signed, err := c.NewRequest(action, params)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}

	body := signed.Encode()
	l.WithField("params", redactParams(signed.Params)).Debug("Provider request data")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	l.WithField("status", resp.StatusCode).WithField("body", string(raw)).Debug("Provider response")

	result := &CallResult{Raw: raw}
	if recorder != nil {
		id, err := recorder.RecordCall(ctx, c.cfg.Endpoint+"?"+body, raw)
		if err != nil {
			return nil, fmt.Errorf("record %s call: %w", action, err)
		}
		result.RecordID = id
	}

	if resp.StatusCode >= http.StatusBadRequest {
		err := errorFromBody(resp.StatusCode, raw)
		l.WithError(err).Debug("Provider call failed")
		return nil, err
	}
	if !parse {
		return result, nil
	}

	doc, err := ProcessResponse(raw)
	if err != nil {
		l.WithError(err).Debug("Provider call failed")
		return nil, err
	}
	result.Document = doc
	return result, nil
}

// ProcessResponse parses a response body and converts error envelopes into
// a *ProviderError.
func ProcessResponse(raw []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(raw)
	for _, code := range bareErrorCodes {
		if bytes.HasPrefix(trimmed, []byte(code)) {
			message := strings.TrimLeft(string(trimmed[len(code):]), " :-\t")
			return nil, &ProviderError{Code: code, Message: strings.TrimSpace(message)}
		}
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if doc.Root().Tag() == "ErrorResponse" {
		return nil, &ProviderError{
			Code:    doc.Get("Error.Code").Text(),
			Message: doc.Get("Error.Message").Text(),
		}
	}
	return doc, nil
}

func errorFromBody(status int, raw []byte) error {
	var providerErr *ProviderError
	if _, err := ProcessResponse(raw); errors.As(err, &providerErr) {
		return providerErr
	}
	return &ProviderError{
		Code:    fmt.Sprintf("HTTP%d", status),
		Message: truncate(strings.TrimSpace(string(raw)), 512),
	}
}

func redactParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if k == "AddressConsentToken" {
			v = "[redacted]"
		}
		out[k] = v
	}
	return out
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
