// ABOUTME: Salesforce REST client for pushing form records
// ABOUTME: Performs a password-grant token exchange, then one authenticated sobject create
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/harperreed/scanpush/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

var tracer = otel.Tracer("github.com/harperreed/scanpush/sync")

// AccessToken is a bearer token scoped to one sync attempt. It is never
// cached or persisted.
type AccessToken struct {
	Token       string
	InstanceURL string
	TokenType   string
}

// SyncResult is a successful create: the CRM-assigned ID and what was sent.
type SyncResult struct {
	RemoteID string        `json:"id"`
	Success  bool          `json:"success"`
	Warnings []APIError    `json:"errors,omitempty"`
	Payload  RecordPayload `json:"-"`
}

// SalesforceClient delivers FormRecords to Salesforce. It holds only
// immutable configuration and is safe for concurrent use.
type SalesforceClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSalesforceClient creates a client. A nil httpClient gets a traced
// default transport bounded by cfg.Timeout.
func NewSalesforceClient(cfg *Config, httpClient *http.Client) *SalesforceClient {
	c := &SalesforceClient{cfg: *cfg}
	c.cfg.applyDefaults()

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   time.Duration(c.cfg.Timeout),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	c.httpClient = httpClient

	if c.cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), 1)
	}

	return c
}

// Push authenticates and creates one record. It makes exactly one call when
// auth fails and exactly two otherwise. Failures are always *Error.
func (c *SalesforceClient) Push(ctx context.Context, rec *models.FormRecord) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "salesforce.push", trace.WithAttributes(
		attribute.String("scanpush.form_id", rec.ID),
		attribute.String("salesforce.object", c.cfg.ObjectAPIName),
	))
	defer span.End()

	token, err := c.Authenticate(ctx)
	if err != nil {
		markSpan(span, err)
		return nil, err
	}

	result, err := c.CreateRecord(ctx, token, rec)
	if err != nil {
		markSpan(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("salesforce.record_id", result.RemoteID))
	return result, nil
}

// Authenticate trades the configured credentials for a fresh access token.
func (c *SalesforceClient) Authenticate(ctx context.Context) (*AccessToken, error) {
	ctx, span := tracer.Start(ctx, "salesforce.authenticate")
	defer span.End()

	if !c.cfg.IsConfigured() {
		err := &Error{Kind: KindAuthentication, Message: "salesforce credentials not configured"}
		markSpan(span, err)
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		err := &Error{Kind: KindAuthentication, Message: "token exchange not attempted", Err: err}
		markSpan(span, err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Timeout))
	defer cancel()

	recorder := newBodyRecorder(c.httpClient.Transport)
	tokenClient := *c.httpClient
	tokenClient.Transport = recorder
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &tokenClient)

	oauthCfg := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tok, err := oauthCfg.PasswordCredentialsToken(ctx, c.cfg.Username, c.cfg.Password)
	if err != nil {
		authErr := &Error{Kind: KindAuthentication, Message: "token exchange failed", Err: err}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			authErr.Message = "token exchange rejected"
			authErr.Detail = string(retrieveErr.Body)
			if retrieveErr.Response != nil {
				authErr.StatusCode = retrieveErr.Response.StatusCode
			}
		} else if body := recorder.Body(); body != "" {
			// oauth2 reports a 2xx without access_token as a plain error.
			authErr.Message = "token response missing access_token"
			authErr.Detail = body
			authErr.StatusCode = recorder.StatusCode()
		}

		log.Printf("salesforce: %v", authErr)
		markSpan(span, authErr)
		return nil, authErr
	}

	instanceURL, _ := tok.Extra("instance_url").(string)
	instanceURL = strings.TrimRight(strings.TrimSpace(instanceURL), "/")
	if tok.AccessToken == "" || instanceURL == "" {
		err := &Error{
			Kind:       KindAuthentication,
			Message:    "token response missing access_token or instance_url",
			Detail:     recorder.Body(),
			StatusCode: recorder.StatusCode(),
		}
		markSpan(span, err)
		return nil, err
	}

	return &AccessToken{
		Token:       tok.AccessToken,
		InstanceURL: instanceURL,
		TokenType:   tok.TokenType,
	}, nil
}

// CreateRecordURL returns the sobject create endpoint for the configured object.
func (c *SalesforceClient) CreateRecordURL(instanceURL string) string {
	return fmt.Sprintf("%s/services/data/%s/sobjects/%s/", instanceURL, APIVersion, c.cfg.ObjectAPIName)
}

// CreateRecord POSTs the projected record. Only 201 counts as success; any
// other response keeps the CRM's body verbatim in Error.Detail.
func (c *SalesforceClient) CreateRecord(ctx context.Context, token *AccessToken, rec *models.FormRecord) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "salesforce.create_record")
	defer span.End()

	payload := NewRecordPayload(rec)
	body, err := json.Marshal(payload)
	if err != nil {
		err := &Error{Kind: KindWriteFailed, Message: "failed to encode record", Err: err}
		markSpan(span, err)
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		err := &Error{Kind: KindWriteFailed, Message: "create request not attempted", Err: err}
		markSpan(span, err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.CreateRecordURL(token.InstanceURL), bytes.NewReader(body))
	if err != nil {
		err := &Error{Kind: KindWriteFailed, Message: "failed to build create request", Err: err}
		markSpan(span, err)
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err := &Error{Kind: KindWriteFailed, Message: "create request failed", Err: err}
		log.Printf("salesforce: %v", err)
		markSpan(span, err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		err := &Error{Kind: KindWriteFailed, Message: "failed to read create response", StatusCode: resp.StatusCode, Err: err}
		markSpan(span, err)
		return nil, err
	}

	if resp.StatusCode != http.StatusCreated {
		writeErr := &Error{
			Kind:       KindWriteFailed,
			Message:    fmt.Sprintf("create returned status %d", resp.StatusCode),
			Detail:     string(respBody),
			StatusCode: resp.StatusCode,
		}
		if apiErrors := parseAPIErrors(respBody); len(apiErrors) > 0 {
			log.Printf("salesforce: create %s failed: %s", rec.ID, summarizeAPIErrors(apiErrors))
		} else {
			log.Printf("salesforce: create %s failed with status %d", rec.ID, resp.StatusCode)
		}
		markSpan(span, writeErr)
		return nil, writeErr
	}

	var created CreateResponse
	if err := json.Unmarshal(respBody, &created); err != nil || created.ID == "" {
		writeErr := &Error{
			Kind:       KindWriteFailed,
			Message:    "create response missing record id",
			Detail:     string(respBody),
			StatusCode: resp.StatusCode,
			Err:        err,
		}
		markSpan(span, writeErr)
		return nil, writeErr
	}

	return &SyncResult{
		RemoteID: created.ID,
		Success:  created.Success,
		Warnings: created.Errors,
		Payload:  payload,
	}, nil
}

func (c *SalesforceClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	return c.limiter.Wait(ctx)
}

func markSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(KindOf(err)))
}

// bodyRecorder keeps the token endpoint's response body so a malformed
// token response can be reported verbatim. One recorder serves one exchange.
type bodyRecorder struct {
	next   http.RoundTripper
	body   []byte
	status int
}

func newBodyRecorder(next http.RoundTripper) *bodyRecorder {
	if next == nil {
		next = http.DefaultTransport
	}
	return &bodyRecorder{next: next}
}

func (r *bodyRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	r.body = body
	r.status = resp.StatusCode
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (r *bodyRecorder) Body() string {
	return string(r.body)
}

func (r *bodyRecorder) StatusCode() int {
	return r.status
}
