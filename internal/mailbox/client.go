package mailbox

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/models"
)

// Config describes the mail server every student mailbox lives on.
type Config struct {
	Host           string
	Port           int
	TLS            bool
	Mailbox        string
	MarkSeen       bool
	SessionTimeout time.Duration
}

// Message is a fetched message id (the IMAP UID) with its decoded text.
type Message struct {
	ID   string
	Body string
}

// Client fetches unseen mail from student mailboxes, one session per call.
type Client struct {
	cfg    Config
	dial   DialFunc
	cache  *SeenCache
	logger *zap.Logger
}

// NewClient builds a Client. A nil dial uses DialIMAP.
func NewClient(cfg Config, dial DialFunc, cache *SeenCache, logger *zap.Logger) *Client {
	if dial == nil {
		dial = DialIMAP
	}
	if cache == nil {
		cache = NewSeenCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = time.Minute
	}
	return &Client{cfg: cfg, dial: dial, cache: cache, logger: logger}
}

// Cache exposes the seen-message cache shared by every call.
func (c *Client) Cache() *SeenCache {
	return c.cache
}

// FetchUnseen returns the unseen messages of student's mailbox that this
// process has not fetched before. Connection, authentication and protocol
// failures are logged and yield an empty result. The session is always closed.
func (c *Client) FetchUnseen(ctx context.Context, student models.Student) []Message {
	log := c.logger.Sugar().With("student_id", student.ID)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SessionTimeout)
	defer cancel()

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	sess, err := c.dial(ctx, addr, c.cfg.TLS)
	if err != nil {
		log.Warnw("mailbox connect failed", "email", student.Email, "error", err)
		return nil
	}
	// abort blocked commands once the session deadline passes
	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer stop()
	defer func() {
		if err := sess.Logout(); err != nil {
			log.Debugw("mailbox logout failed", "error", err)
		}
	}()

	if err := sess.Login(student.Email, student.Password); err != nil {
		log.Warnw("mailbox login failed", "email", student.Email, "error", err)
		return nil
	}
	if err := sess.Select(c.cfg.Mailbox); err != nil {
		log.Warnw("mailbox select failed", "mailbox", c.cfg.Mailbox, "error", err)
		return nil
	}

	uids, err := sess.SearchUnseen()
	if err != nil {
		log.Warnw("mailbox search failed", "error", err)
		return nil
	}

	fresh := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		if !c.cache.Seen(student.ID, messageID(uid)) {
			fresh = append(fresh, uid)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	raw, err := sess.Fetch(fresh, !c.cfg.MarkSeen)
	if err != nil {
		log.Warnw("mailbox fetch failed", "messages", len(fresh), "error", err)
		return nil
	}

	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		id := messageID(m.UID)
		messages = append(messages, Message{ID: id, Body: FlattenText(m.Body)})
		c.cache.Add(student.ID, id)
	}
	log.Infow("fetched unseen messages", "messages", len(messages), "skipped", len(uids)-len(fresh))
	return messages
}

func messageID(uid imap.UID) string {
	return strconv.FormatUint(uint64(uid), 10)
}
