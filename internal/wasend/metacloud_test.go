package wasend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewMetaCloudProvider_RequiresCredentials(t *testing.T) {
	if _, err := NewMetaCloudProvider(MetaCloudConfig{}, nil); err == nil {
		t.Fatalf("expected error when access token and phone number id are missing")
	}
}

func TestMetaCloudProvider_Send_ReturnsMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected bearer token header, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.123"}]}`))
	}))
	defer srv.Close()

	p, err := NewMetaCloudProvider(MetaCloudConfig{
		AccessToken:   "test-token",
		PhoneNumberID: "1234567890",
		GraphAPIBase:  srv.URL,
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewMetaCloudProvider error: %v", err)
	}

	id, err := p.Send(context.Background(), 1, "+491234567", "hello")
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if id != "wamid.123" {
		t.Fatalf("expected message id wamid.123, got %q", id)
	}
}

func TestMetaCloudProvider_Send_TokenExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Error validating access token","code":190}}`))
	}))
	defer srv.Close()

	p, err := NewMetaCloudProvider(MetaCloudConfig{
		AccessToken:   "stale-token",
		PhoneNumberID: "1234567890",
		GraphAPIBase:  srv.URL,
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewMetaCloudProvider error: %v", err)
	}

	if _, err := p.Send(context.Background(), 1, "+491234567", "hello"); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestMetaCloudProvider_Send_OtherErrorIsNotTokenExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid phone number","code":100}}`))
	}))
	defer srv.Close()

	p, err := NewMetaCloudProvider(MetaCloudConfig{
		AccessToken:   "test-token",
		PhoneNumberID: "1234567890",
		GraphAPIBase:  srv.URL,
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewMetaCloudProvider error: %v", err)
	}

	_, err = p.Send(context.Background(), 1, "+491234567", "hello")
	if err == nil || err == ErrTokenExpired {
		t.Fatalf("expected a non-token-expired error, got %v", err)
	}
}
