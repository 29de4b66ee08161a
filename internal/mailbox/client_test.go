package mailbox_test

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusplace/ingest/internal/mailbox"
	"github.com/campusplace/ingest/internal/models"
	"github.com/campusplace/ingest/internal/testutil"
)

func connectToTestServer(t *testing.T, server *testutil.TestIMAPServer) *mailbox.Client {
	t.Helper()

	host, portStr, err := net.SplitHostPort(server.Address)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := mailbox.Connect(models.EmailConfig{
		Address:     server.Username(),
		AppPassword: server.Password(),
		IMAPServer:  host,
		IMAPPort:    port,
	}, false)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	server := testutil.NewTestIMAPServer(t)
	defer server.Close()

	host, portStr, err := net.SplitHostPort(server.Address)
	require.NoError(t, err)
	port, _ := strconv.Atoi(portStr)

	_, err = mailbox.Connect(models.EmailConfig{
		Address:     server.Username(),
		AppPassword: "wrong-password",
		IMAPServer:  host,
		IMAPPort:    port,
	}, false)
	assert.Error(t, err)
}

func TestSearchAndFetch(t *testing.T) {
	server := testutil.NewTestIMAPServer(t)
	defer server.Close()

	sentAt := time.Now().Add(-time.Hour)
	uid := server.AddMessage(t, "<job-announce@example.com>", "Hiring at Acme",
		"spr@thapar.edu", "CampusNotice2026@thapar.edu", "Acme Corp is hiring.", sentAt)

	client := connectToTestServer(t, server)

	t.Run("search since finds the message", func(t *testing.T) {
		uids, err := client.SearchSince(time.Now().Add(-24 * time.Hour))
		require.NoError(t, err)
		assert.Contains(t, uids, uid)
	})

	t.Run("search from filters by sender", func(t *testing.T) {
		require.NoError(t, client.SelectInbox())

		uids, err := client.SearchFrom("spr@thapar.edu")
		require.NoError(t, err)
		assert.Contains(t, uids, uid)

		uids, err = client.SearchFrom("nobody@example.com")
		require.NoError(t, err)
		assert.NotContains(t, uids, uid)
	})

	t.Run("fetch and decode round-trip", func(t *testing.T) {
		raw, err := client.FetchRaw(uid)
		require.NoError(t, err)

		msg, err := mailbox.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, "<job-announce@example.com>", msg.MessageID)
		assert.Equal(t, "Hiring at Acme", msg.Subject)
		assert.Contains(t, msg.Body, "Acme Corp is hiring.")
	})
}
