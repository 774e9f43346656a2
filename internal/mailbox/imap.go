package mailbox

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// RawMessage is one fetched message before decoding.
type RawMessage struct {
	UID  imap.UID
	Body []byte
}

// Session is the subset of an IMAP connection the Client drives.
type Session interface {
	Login(username, password string) error
	Select(mailbox string) error
	SearchUnseen() ([]imap.UID, error)
	Fetch(uids []imap.UID, peek bool) ([]RawMessage, error)
	Logout() error
	Close() error
}

// DialFunc opens a Session to addr.
type DialFunc func(ctx context.Context, addr string, useTLS bool) (Session, error)

// DialIMAP connects with implicit TLS, or STARTTLS when useTLS is false.
func DialIMAP(_ context.Context, addr string, useTLS bool) (Session, error) {
	var (
		client *imapclient.Client
		err    error
	)
	if useTLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	return &imapSession{client: client}, nil
}

type imapSession struct {
	client *imapclient.Client
}

func (s *imapSession) Login(username, password string) error {
	if err := s.client.Login(username, password).Wait(); err != nil {
		return fmt.Errorf("authentication failed for %s: %w", username, err)
	}
	return nil
}

func (s *imapSession) Select(mailbox string) error {
	if _, err := s.client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}
	return nil
}

func (s *imapSession) SearchUnseen() ([]imap.UID, error) {
	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}
	return data.AllUIDs(), nil
}

func (s *imapSession) Fetch(uids []imap.UID, peek bool) ([]RawMessage, error) {
	section := &imap.FetchItemBodySection{Peek: peek}
	fetchCmd := s.client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})

	var out []RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		body := buf.FindBodySection(section)
		if body == nil {
			continue
		}
		out = append(out, RawMessage{UID: buf.UID, Body: body})
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

func (s *imapSession) Logout() error {
	return s.client.Logout().Wait()
}

func (s *imapSession) Close() error {
	return s.client.Close()
}
