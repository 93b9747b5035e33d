package sms

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestIsDomesticNumber(t *testing.T) {
	cases := []struct {
		phone string
		want  bool
	}{
		{"+821012345678", true},
		{"01012345678", true},
		{"01112345678", true},
		{"0161234567", true},
		{"+15551234567", false},
		{"+447911123456", false},
		{"021234567", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsDomesticNumber(tc.phone); got != tc.want {
			t.Errorf("IsDomesticNumber(%q) = %v, want %v", tc.phone, got, tc.want)
		}
	}
}

func TestNormalizeDomestic(t *testing.T) {
	cases := []struct {
		phone string
		want  string
	}{
		{"+82-10-1234-5678", "01012345678"},
		{"+821012345678", "01012345678"},
		{"010-1234-5678", "01012345678"},
		{"01012345678", "01012345678"},
	}
	for _, tc := range cases {
		if got := normalizeDomestic(tc.phone); got != tc.want {
			t.Errorf("normalizeDomestic(%q) = %q, want %q", tc.phone, got, tc.want)
		}
	}
}

func TestSendAligoSuccess(t *testing.T) {
	var gotReceiver, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotKey = r.PostFormValue("key")
		gotReceiver = r.PostFormValue("receiver")
		w.Write([]byte(`{"result_code":"1","message":"success"}`))
	}))
	defer server.Close()

	d := NewDispatcher(
		AligoConfig{APIKey: "test-key", UserID: "tester", Sender: "0212345678", BaseURL: server.URL},
		TwilioConfig{},
		testLogger(),
	)

	res := d.Send(context.Background(), "+821012345678", "hello")
	if !res.Success {
		t.Error("expected success")
	}
	if res.Provider != ProviderAligo {
		t.Errorf("provider = %q, want %q", res.Provider, ProviderAligo)
	}
	if gotKey != "test-key" {
		t.Errorf("key = %q, want %q", gotKey, "test-key")
	}
	if gotReceiver != "01012345678" {
		t.Errorf("receiver = %q, want normalized local format", gotReceiver)
	}
}

func TestSendAligoNumericResultCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result_code":1,"message":"success"}`))
	}))
	defer server.Close()

	d := NewDispatcher(
		AligoConfig{APIKey: "k", UserID: "u", Sender: "s", BaseURL: server.URL},
		TwilioConfig{},
		testLogger(),
	)

	if res := d.Send(context.Background(), "01012345678", "hi"); !res.Success {
		t.Error("expected success for numeric result_code")
	}
}

func TestSendAligoRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result_code":"-101","message":"invalid key"}`))
	}))
	defer server.Close()

	d := NewDispatcher(
		AligoConfig{APIKey: "bad", UserID: "u", Sender: "s", BaseURL: server.URL},
		TwilioConfig{},
		testLogger(),
	)

	res := d.Send(context.Background(), "01012345678", "hi")
	if res.Success {
		t.Error("expected failure for rejected result_code")
	}
	if res.Provider != ProviderAligo {
		t.Errorf("provider = %q, want %q", res.Provider, ProviderAligo)
	}
}

func TestSendTwilioSuccess(t *testing.T) {
	var gotTo, gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, _ = r.BasicAuth()
		r.ParseForm()
		gotTo = r.PostFormValue("To")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer server.Close()

	d := NewDispatcher(
		AligoConfig{},
		TwilioConfig{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15550001111", BaseURL: server.URL},
		testLogger(),
	)

	res := d.Send(context.Background(), "+15551234567", "hello")
	if !res.Success {
		t.Error("expected success")
	}
	if res.Provider != ProviderTwilio {
		t.Errorf("provider = %q, want %q", res.Provider, ProviderTwilio)
	}
	if gotTo != "+15551234567" {
		t.Errorf("To = %q", gotTo)
	}
	if gotUser != "AC123" {
		t.Errorf("basic auth user = %q, want account sid", gotUser)
	}
}

func TestSendTwilioError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	d := NewDispatcher(
		AligoConfig{},
		TwilioConfig{AccountSID: "AC123", AuthToken: "bad", FromNumber: "+15550001111", BaseURL: server.URL},
		testLogger(),
	)

	if res := d.Send(context.Background(), "+15551234567", "hello"); res.Success {
		t.Error("expected failure for 401 response")
	}
}

func TestSendDomesticFallsBackToTwilio(t *testing.T) {
	// Korean number but no Aligo credentials: route internationally.
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	d := NewDispatcher(
		AligoConfig{},
		TwilioConfig{AccountSID: "AC123", AuthToken: "t", FromNumber: "+15550001111", BaseURL: server.URL},
		testLogger(),
	)

	res := d.Send(context.Background(), "+821012345678", "hello")
	if !called {
		t.Error("expected twilio gateway to be called")
	}
	if res.Provider != ProviderTwilio {
		t.Errorf("provider = %q, want %q", res.Provider, ProviderTwilio)
	}
}

func TestSendNoCredentials(t *testing.T) {
	d := NewDispatcher(AligoConfig{}, TwilioConfig{}, testLogger())

	res := d.Send(context.Background(), "+15551234567", "hello")
	if !res.Success {
		t.Error("expected no-op success with zero credentials")
	}
	if res.Provider != ProviderNone {
		t.Errorf("provider = %q, want %q", res.Provider, ProviderNone)
	}
}

func TestSendNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	d := NewDispatcher(
		AligoConfig{APIKey: "k", UserID: "u", Sender: "s", BaseURL: server.URL},
		TwilioConfig{},
		testLogger(),
	)

	res := d.Send(context.Background(), "01012345678", "hello")
	if res.Success {
		t.Error("expected failure on network error")
	}
}
