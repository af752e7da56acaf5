package mailbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/model"
)

// IMAPConfig holds the connection settings for an IMAPStore.
type IMAPConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	TLS          bool
	Folder       string
	DraftsFolder string
}

// IMAPStore implements MailStore over IMAP for reads and drafts and
// SMTP for sending. It keeps one logged-in session open across calls
// until EndSession, so a triage pass costs a single login.
type IMAPStore struct {
	cfg    IMAPConfig
	smtp   SMTPConfig
	logger *zap.Logger
	now    func() time.Time
	dial   func(addr string) (*imapclient.Client, error)

	mu     sync.Mutex
	client *imapclient.Client
}

// NewIMAPStore creates a new IMAP-backed mail store.
func NewIMAPStore(cfg IMAPConfig, smtp SMTPConfig, logger *zap.Logger) *IMAPStore {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.DraftsFolder == "" {
		cfg.DraftsFolder = "Drafts"
	}
	s := &IMAPStore{
		cfg:    cfg,
		smtp:   smtp,
		logger: logger,
		now:    time.Now,
	}
	s.dial = s.dialServer
	return s
}

func (s *IMAPStore) dialServer(addr string) (*imapclient.Client, error) {
	if s.cfg.TLS {
		return imapclient.DialTLS(addr, nil)
	}
	return imapclient.DialStartTLS(addr, nil)
}

// connect establishes a connection to the IMAP server, authenticates,
// and selects the configured folder.
func (s *IMAPStore) connect(_ context.Context) (*imapclient.Client, error) {
	addr := s.cfg.Host + ":" + s.cfg.Port

	client, err := s.dial(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Server:  addr,
			Message: fmt.Sprintf("authentication failed for %s: %v", s.cfg.Username, err),
		}
	}

	if _, err := client.Select(s.cfg.Folder, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", s.cfg.Folder, err)
	}

	s.logger.Debug("imap session opened", zap.String("server", addr), zap.String("folder", s.cfg.Folder))
	return client, nil
}

// withSession runs fn on the open session, connecting first when there
// is none. A transport failure drops the session so the next call
// reconnects; NO/BAD replies and missing messages keep it.
func (s *IMAPStore) withSession(ctx context.Context, fn func(*imapclient.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		select {
		case <-s.client.Closed():
			s.client = nil
		default:
		}
	}
	if s.client == nil {
		client, err := s.connect(ctx)
		if err != nil {
			return err
		}
		s.client = client
	}

	err := fn(s.client)
	var imapErr *imap.Error
	if err != nil && !errors.As(err, &imapErr) && !errors.Is(err, ErrNotFound) {
		_ = s.client.Close()
		s.client = nil
	}
	return err
}

// EndSession logs out of the open session, if any. The next call opens
// a new one.
func (s *IMAPStore) EndSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	client := s.client
	s.client = nil
	err := client.Logout().Wait()
	_ = client.Close()
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Ping verifies credentials by opening a session and issuing NOOP.
func (s *IMAPStore) Ping(ctx context.Context) error {
	return s.withSession(ctx, func(client *imapclient.Client) error {
		return client.Noop().Wait()
	})
}

// ListUnread searches for messages without the \Seen flag and returns
// up to limit of them in UID order.
func (s *IMAPStore) ListUnread(ctx context.Context, limit int) ([]MessageRef, error) {
	var uids []imap.UID
	err := s.withSession(ctx, func(client *imapclient.Client) error {
		criteria := &imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagSeen},
		}
		searchData, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching unread messages: %w", err)
		}
		uids = searchData.AllUIDs()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	refs := make([]MessageRef, 0, len(uids))
	for _, uid := range uids {
		refs = append(refs, MessageRef{ID: strconv.FormatUint(uint64(uid), 10)})
	}

	s.logger.Debug("listed unread messages",
		zap.String("folder", s.cfg.Folder),
		zap.Int("count", len(refs)),
	)

	return refs, nil
}

// GetMessage fetches the envelope and body of a message without
// setting \Seen.
func (s *IMAPStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	var out *model.Message
	err = s.withSession(ctx, func(client *imapclient.Client) error {
		var fetchErr error
		out, fetchErr = s.fetchMessage(client, uid, id)
		return fetchErr
	})
	return out, err
}

func (s *IMAPStore) fetchMessage(client *imapclient.Client, uid imap.UID, id string) (*model.Message, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uid), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, fmt.Errorf("fetching message %s: %w", id, err)
		}
		return nil, fmt.Errorf("fetching message %s: %w", id, ErrNotFound)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message %s: %w", id, err)
	}

	out := &model.Message{ID: id}
	if env := buf.Envelope; env != nil {
		out.Subject = env.Subject
		out.ReceivedAt = env.Date
		if len(env.From) > 0 {
			out.Sender = formatSender(env.From[0].Name, env.From[0].Addr())
		}
	}
	if out.ReceivedAt.IsZero() {
		out.ReceivedAt = s.now()
	}

	if raw := buf.FindBodySection(bodySection); raw != nil {
		text, html := parseMIMEBody(raw)
		if text == "" && html != "" {
			text = stripHTML(html)
		}
		out.Body = text
	}

	if err := fetchCmd.Close(); err != nil {
		return out, fmt.Errorf("closing fetch: %w", err)
	}

	return out, nil
}

// MarkRead adds \Seen to the message.
func (s *IMAPStore) MarkRead(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	return s.withSession(ctx, func(client *imapclient.Client) error {
		storeCmd := client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil)

		if err := storeCmd.Close(); err != nil {
			return fmt.Errorf("marking message %s read: %w", id, err)
		}
		return nil
	})
}

// Send composes the reply and delivers it over SMTP.
func (s *IMAPStore) Send(_ context.Context, to, subject, body string) (*SendResult, error) {
	raw, messageID, err := composeReply(s.smtp.Username, to, subject, body, s.now())
	if err != nil {
		return nil, err
	}
	if err := sendSMTP(s.smtp, s.smtp.Username, to, raw); err != nil {
		return nil, fmt.Errorf("sending reply to %s: %w", to, err)
	}
	return &SendResult{MessageID: messageID}, nil
}

// SaveDraft appends the composed reply to the drafts folder.
func (s *IMAPStore) SaveDraft(ctx context.Context, to, subject, body string) (*SendResult, error) {
	raw, messageID, err := composeReply(s.cfg.Username, to, subject, body, s.now())
	if err != nil {
		return nil, err
	}

	err = s.withSession(ctx, func(client *imapclient.Client) error {
		appendCmd := client.Append(s.cfg.DraftsFolder, int64(len(raw)), &imap.AppendOptions{
			Flags: []imap.Flag{imap.FlagDraft, imap.FlagSeen},
			Time:  s.now(),
		})
		if _, err := appendCmd.Write(raw); err != nil {
			_ = appendCmd.Close()
			return fmt.Errorf("writing draft: %w", err)
		}
		if err := appendCmd.Close(); err != nil {
			return fmt.Errorf("closing draft append: %w", err)
		}
		if _, err := appendCmd.Wait(); err != nil {
			return fmt.Errorf("appending draft to %s: %w", s.cfg.DraftsFolder, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SendResult{MessageID: messageID}, nil
}

// formatSender renders an address as "Name <addr>" or a bare address.
func formatSender(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

// parseUID converts a message id to an IMAP UID.
func parseUID(id string) (imap.UID, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message UID %q: %w", id, err)
	}
	return imap.UID(uid), nil
}

// parseMIMEBody parses a raw RFC 5322 message using go-message and
// returns the first text/plain and text/html bodies.
func parseMIMEBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags and decodes common entities.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
