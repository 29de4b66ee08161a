package mailbox

import (
	"fmt"
	"time"

	"github.com/emersion/go-imap"
)

// SearchSince returns the UIDs of INBOX messages received on or after the
// given date. IMAP SINCE has day granularity; callers needing a tighter
// window filter on the decoded Date header afterwards.
func (c *Client) SearchSince(since time.Time) ([]uint32, error) {
	if err := c.SelectInbox(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := c.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search since %s: %w", since.Format("02-Jan-2006"), err)
	}

	return uids, nil
}

// SearchFrom returns the UIDs of INBOX messages from the given sender
// address. Used for thread expansion around a reply.
func (c *Client) SearchFrom(addr string) ([]uint32, error) {
	if err := c.SelectInbox(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", addr)

	uids, err := c.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search by sender: %w", err)
	}

	return uids, nil
}
