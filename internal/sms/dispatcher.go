// Package sms routes outbound guardian messages to one of two gateways
// based on phone number locale: an Aligo-style domestic gateway for Korean
// numbers and a Twilio-style gateway for everything else. With no
// credentials configured it degrades to a logging no-op so the system runs
// in local development without sending anything.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider identifies which gateway handled a message.
type Provider string

const (
	ProviderAligo  Provider = "aligo"
	ProviderTwilio Provider = "twilio"
	ProviderNone   Provider = "none"
)

const defaultTimeout = 10 * time.Second

// Result is the outcome of a send attempt. Transport failures are folded
// into Success=false; Send never returns an error to its caller.
type Result struct {
	Success  bool     `json:"success"`
	Provider Provider `json:"provider"`
}

// AligoConfig holds domestic gateway credentials.
type AligoConfig struct {
	APIKey  string
	UserID  string
	Sender  string
	BaseURL string
}

// TwilioConfig holds international gateway credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// Dispatcher selects and calls an SMS gateway.
type Dispatcher struct {
	aligo      AligoConfig
	twilio     TwilioConfig
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.httpClient = c
	}
}

func NewDispatcher(aligo AligoConfig, twilio TwilioConfig, logger *slog.Logger, opts ...Option) *Dispatcher {
	if aligo.BaseURL == "" {
		aligo.BaseURL = "https://apis.aligo.in"
	}
	if twilio.BaseURL == "" {
		twilio.BaseURL = "https://api.twilio.com"
	}
	d := &Dispatcher{
		aligo:      aligo,
		twilio:     twilio,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send routes the message to a gateway and reports the outcome. Routing:
// domestic number + domestic credentials -> Aligo; otherwise Twilio if
// configured; otherwise a logged no-op that reports success.
func (d *Dispatcher) Send(ctx context.Context, phone, message string) Result {
	switch {
	case IsDomesticNumber(phone) && d.aligo.APIKey != "":
		ok := d.sendAligo(ctx, phone, message)
		return Result{Success: ok, Provider: ProviderAligo}
	case d.twilio.AccountSID != "":
		ok := d.sendTwilio(ctx, phone, message)
		return Result{Success: ok, Provider: ProviderTwilio}
	default:
		d.logger.Info("sms gateway not configured, message logged only", "to", phone, "message", message)
		return Result{Success: true, Provider: ProviderNone}
	}
}

// IsDomesticNumber classifies a phone number as Korean: the +82 country code
// or a local 01X mobile prefix.
func IsDomesticNumber(phone string) bool {
	if strings.HasPrefix(phone, "+82") {
		return true
	}
	if len(phone) >= 3 && phone[0] == '0' && phone[1] == '1' && phone[2] >= '0' && phone[2] <= '9' {
		return true
	}
	return false
}

// normalizeDomestic strips the number to digits and rewrites the 82 country
// code to the local leading zero: +82-10-1234-5678 -> 01012345678.
func normalizeDomestic(phone string) string {
	var b strings.Builder
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "82") {
		digits = "0" + digits[2:]
	}
	return digits
}

type aligoResponse struct {
	ResultCode json.Number `json:"result_code"`
	Message    string      `json:"message"`
}

func (d *Dispatcher) sendAligo(ctx context.Context, phone, message string) bool {
	form := url.Values{}
	form.Set("key", d.aligo.APIKey)
	form.Set("user_id", d.aligo.UserID)
	form.Set("sender", d.aligo.Sender)
	form.Set("receiver", normalizeDomestic(phone))
	form.Set("msg", message)

	req, err := http.NewRequestWithContext(ctx, "POST", d.aligo.BaseURL+"/send/", strings.NewReader(form.Encode()))
	if err != nil {
		d.logger.Error("aligo request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("aligo send", "error", err)
		return false
	}
	defer resp.Body.Close()

	var result aligoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		d.logger.Error("aligo decode response", "error", err)
		return false
	}
	if result.ResultCode.String() != "1" {
		d.logger.Warn("aligo rejected message", "result_code", result.ResultCode, "message", result.Message)
		return false
	}
	return true
}

func (d *Dispatcher) sendTwilio(ctx context.Context, phone, message string) bool {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", d.twilio.FromNumber)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", d.twilio.BaseURL, d.twilio.AccountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		d.logger.Error("twilio request", "error", err)
		return false
	}
	req.SetBasicAuth(d.twilio.AccountSID, d.twilio.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("twilio send", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.Warn("twilio rejected message", "status", resp.StatusCode)
		return false
	}
	return true
}
