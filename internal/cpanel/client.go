// Package cpanel creates and removes mailboxes through the cPanel UAPI Email module.
package cpanel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"phcportal/internal/config"
)

// ErrNotConfigured is returned when host or credentials are missing.
var ErrNotConfigured = errors.New("cpanel credentials are not configured")

// Client is a minimal UAPI client authenticated with an API token.
type Client struct {
	baseURL string
	user    string
	token   string
	quotaMB int
	http    *http.Client
}

// NewClient builds a client for cfg. Hosts given without a scheme are reached over HTTPS
// on the cPanel port 2083.
func NewClient(cfg config.CPanelConfig) *Client {
	base := strings.TrimRight(cfg.Host, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base + ":2083"
	}
	return &Client{
		baseURL: base,
		user:    cfg.User,
		token:   cfg.APIToken,
		quotaMB: cfg.QuotaMB,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.user != "" && c.token != ""
}

type uapiResponse struct {
	Status   int             `json:"status"`
	Errors   []string        `json:"errors"`
	Messages []string        `json:"messages"`
	Data     json.RawMessage `json:"data"`
}

// AddMailbox creates address@domain with the given password via Email::add_pop.
func (c *Client) AddMailbox(ctx context.Context, address, password string) error {
	local, domain, err := splitAddress(address)
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("email", local)
	q.Set("password", password)
	q.Set("quota", strconv.Itoa(c.quotaMB))
	q.Set("domain", domain)
	if err := c.execute(ctx, "Email/add_pop", q); err != nil {
		if errors.Is(err, errRejected) {
			return errors.New("cpanel: mailbox was not created")
		}
		return err
	}
	return nil
}

// RemoveMailbox deletes address@domain via Email::delete_pop.
func (c *Client) RemoveMailbox(ctx context.Context, address string) error {
	local, domain, err := splitAddress(address)
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("email", local)
	q.Set("domain", domain)
	if err := c.execute(ctx, "Email/delete_pop", q); err != nil {
		if errors.Is(err, errRejected) {
			return errors.New("cpanel: mailbox was not removed")
		}
		return err
	}
	return nil
}

func splitAddress(address string) (string, string, error) {
	local, domain, ok := strings.Cut(address, "@")
	if !ok || local == "" || domain == "" {
		return "", "", fmt.Errorf("invalid mailbox address %q", address)
	}
	return local, domain, nil
}

// errRejected marks a UAPI status 0 reply that carried no error text.
var errRejected = errors.New("cpanel: request rejected")

func (c *Client) execute(ctx context.Context, function string, q url.Values) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/execute/"+function+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build cpanel request: %w", err)
	}
	req.Header.Set("Authorization", "cpanel "+c.user+":"+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cpanel request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read cpanel response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cpanel returned status %d", resp.StatusCode)
	}

	var out uapiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("failed to decode cpanel response: %w", err)
	}
	if out.Status != 1 {
		if len(out.Errors) > 0 {
			return fmt.Errorf("cpanel: %s", strings.Join(out.Errors, "; "))
		}
		return errRejected
	}
	return nil
}
