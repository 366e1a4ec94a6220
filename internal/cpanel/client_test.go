package cpanel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"phcportal/internal/config"
)

func TestAddMailboxSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"status":1,"errors":null,"messages":null,"data":""}`))
	}))
	defer srv.Close()

	c := NewClient(config.CPanelConfig{Host: srv.URL, User: "agency", APIToken: "TOKEN", QuotaMB: 250})
	if err := c.AddMailbox(context.Background(), "jane.doe@kwsphcda.gov.ng", "s3cret-pass"); err != nil {
		t.Fatalf("AddMailbox: %v", err)
	}

	if gotAuth != "cpanel agency:TOKEN" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotPath != "/execute/Email/add_pop" {
		t.Fatalf("path = %q", gotPath)
	}
	want := map[string]string{"email": "jane.doe", "domain": "kwsphcda.gov.ng", "quota": "250", "password": "s3cret-pass"}
	for k, v := range want {
		if got := gotQuery[k]; len(got) != 1 || got[0] != v {
			t.Fatalf("query %s = %v, want %q", k, got, v)
		}
	}
}

func TestAddMailboxUAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":0,"errors":["The account already exists."]}`))
	}))
	defer srv.Close()

	c := NewClient(config.CPanelConfig{Host: srv.URL, User: "u", APIToken: "t"})
	err := c.AddMailbox(context.Background(), "a@b.ng", "pw")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("err = %v, want uapi error", err)
	}
}

func TestAddMailboxHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(config.CPanelConfig{Host: srv.URL, User: "u", APIToken: "t"})
	if err := c.AddMailbox(context.Background(), "a@b.ng", "pw"); err == nil {
		t.Fatalf("expected error for 401")
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(config.CPanelConfig{})
	if c.Enabled() {
		t.Fatalf("empty config reported enabled")
	}
	if err := c.AddMailbox(context.Background(), "a@b.ng", "pw"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestHostWithoutScheme(t *testing.T) {
	c := NewClient(config.CPanelConfig{Host: "server.example.ng", User: "u", APIToken: "t"})
	if c.baseURL != "https://server.example.ng:2083" {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
}

func TestRemoveMailbox(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer srv.Close()

	c := NewClient(config.CPanelConfig{Host: srv.URL, User: "u", APIToken: "t"})
	if err := c.RemoveMailbox(context.Background(), "jane.doe@kwsphcda.gov.ng"); err != nil {
		t.Fatalf("RemoveMailbox: %v", err)
	}
	if gotPath != "/execute/Email/delete_pop" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery["email"][0] != "jane.doe" || gotQuery["domain"][0] != "kwsphcda.gov.ng" {
		t.Fatalf("query = %v", gotQuery)
	}
	if _, ok := gotQuery["password"]; ok {
		t.Fatalf("delete_pop sent a password")
	}
}

func TestRemoveMailboxRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":0}`))
	}))
	defer srv.Close()

	c := NewClient(config.CPanelConfig{Host: srv.URL, User: "u", APIToken: "t"})
	if err := c.RemoveMailbox(context.Background(), "a@b.ng"); err == nil {
		t.Fatalf("expected error for status 0")
	}
}
