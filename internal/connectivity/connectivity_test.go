package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProbeReportsOnlineForAnyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	probe := NewHTTPProbe(server.URL, nil)
	if !probe.Online(context.Background()) {
		t.Fatal("a responding server counts as online even with an error status")
	}
}

func TestHTTPProbeReportsOfflineWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	probe := NewHTTPProbe(server.URL, nil)
	if probe.Online(context.Background()) {
		t.Fatal("a closed server must report offline")
	}
}

func TestStaticGate(t *testing.T) {
	if !Static(true).Online(context.Background()) {
		t.Fatal("static true gate should report online")
	}
	if Static(false).Online(context.Background()) {
		t.Fatal("static false gate should report offline")
	}
}
