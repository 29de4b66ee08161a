package mailbox

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/campusplace/ingest/internal/models"
)

// Client owns one authenticated IMAP session. Sessions are not safe for
// concurrent use; the run controller holds at most one per credential.
type Client struct {
	c *client.Client
}

// Connect dials the configured IMAP server with a 5-second timeout and
// authenticates. useTLS is false only in tests against a plain listener.
func Connect(cfg models.EmailConfig, useTLS bool) (*Client, error) {
	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
	}

	var c *client.Client
	var err error
	if useTLS {
		c, err = client.DialWithDialerTLS(dialer, cfg.Addr(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial with TLS: %w", err)
		}
	} else {
		c, err = client.DialWithDialer(dialer, cfg.Addr())
		if err != nil {
			return nil, fmt.Errorf("failed to dial: %w", err)
		}
	}

	if err := c.Login(cfg.Address, cfg.AppPassword); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return &Client{c: c}, nil
}

// SelectInbox selects INBOX read-write. Safe to call repeatedly; the poll
// loop uses it as a cheap liveness probe.
func (c *Client) SelectInbox() error {
	if _, err := c.c.Select("INBOX", false); err != nil {
		return fmt.Errorf("failed to select INBOX: %w", err)
	}
	return nil
}

// Close logs out of the session. Best effort: called on every exit path,
// including after the connection already dropped.
func (c *Client) Close() {
	if c == nil || c.c == nil {
		return
	}
	_ = c.c.Logout()
}
