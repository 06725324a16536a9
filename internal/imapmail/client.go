// Package imapmail backs the rule engine's mailbox capabilities with an
// IMAP server. Labels map to IMAP keywords and folders to mailboxes.
//
// Mail identifiers take the form "<mailbox>_<uid>:<message-id>". The UID
// changes when a message moves between mailboxes; the Message-ID header
// does not, which is what the post-move verification searches for.
package imapmail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"

	"github.com/Alexmalab/mailsift/internal/mail"
)

// Client implements mail.Mailbox over one IMAP connection. Methods are
// safe for sequential use from one goroutine; the internal mutex only
// guards against accidental concurrent calls.
type Client struct {
	addr     string
	username string
	password string
	log      *slog.Logger

	mu       sync.Mutex
	cli      *imapclient.Client
	selected string
}

// Dial connects and authenticates. The connection stays open until Close.
func Dial(addr, username, password string, log *slog.Logger) (*Client, error) {
	cli, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing imap %s: %w", addr, err)
	}
	if err := cli.Login(username, password).Wait(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("imap login for %s: %w", username, err)
	}
	return &Client{addr: addr, username: username, password: password, log: log, cli: cli}, nil
}

// Close logs out and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli == nil {
		return nil
	}
	err := c.cli.Logout().Wait()
	c.cli = nil
	return err
}

func (c *Client) selectMailbox(name string) error {
	if c.selected == name {
		return nil
	}
	if _, err := c.cli.Select(name, nil).Wait(); err != nil {
		return fmt.Errorf("selecting mailbox %s: %w", name, err)
	}
	c.selected = name
	return nil
}

// FetchFullMessage downloads one message and extracts subject, body and
// participants.
func (c *Client) FetchFullMessage(ctx context.Context, id mail.MailID) (mail.Detail, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	mailbox, uid, err := decodeID(id)
	if err != nil {
		return mail.Detail{}, err
	}
	if err := c.selectMailbox(mailbox); err != nil {
		return mail.Detail{}, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	msgs, err := c.cli.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return mail.Detail{}, fmt.Errorf("fetching uid %d: %w", uid, err)
	}
	if len(msgs) == 0 {
		return mail.Detail{}, fmt.Errorf("message %s not found", id)
	}
	msg := msgs[0]

	detail := mail.Detail{}
	if env := msg.Envelope; env != nil {
		detail.Subject = env.Subject
		detail.HasSubject = true
		detail.Sender = firstAddress(env.From)
		detail.Recipients = toAddresses(env.To)
		detail.Cc = toAddresses(env.Cc)
	}
	if raw := msg.FindBodySection(bodySection); raw != nil {
		detail.Body = extractText(raw)
		detail.HasBody = true
	}
	return detail, nil
}

// ApplyLabels adds the given keywords to each message.
func (c *Client) ApplyLabels(ctx context.Context, ids []mail.MailID, labelIDs []string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	flags := make([]imap.Flag, 0, len(labelIDs))
	for _, l := range labelIDs {
		flags = append(flags, imap.Flag(l))
	}
	return c.storeByMailbox(ids, &imap.StoreFlags{Op: imap.StoreFlagsAdd, Silent: true, Flags: flags})
}

// MarkRead sets or clears \Seen.
func (c *Client) MarkRead(ctx context.Context, ids []mail.MailID, read bool) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	op := imap.StoreFlagsAdd
	if !read {
		op = imap.StoreFlagsDel
	}
	return c.storeByMailbox(ids, &imap.StoreFlags{Op: op, Silent: true, Flags: []imap.Flag{imap.FlagSeen}})
}

// storeByMailbox groups ids by their source mailbox and issues one STORE
// per group. The caller holds the mutex.
func (c *Client) storeByMailbox(ids []mail.MailID, store *imap.StoreFlags) error {
	byMailbox := map[string][]imap.UID{}
	order := []string{}
	for _, id := range ids {
		mailbox, uid, err := decodeID(id)
		if err != nil {
			return err
		}
		if _, seen := byMailbox[mailbox]; !seen {
			order = append(order, mailbox)
		}
		byMailbox[mailbox] = append(byMailbox[mailbox], uid)
	}
	for _, mailbox := range order {
		if err := c.selectMailbox(mailbox); err != nil {
			return err
		}
		cmd := c.cli.Store(imap.UIDSetNum(byMailbox[mailbox]...), store, nil)
		if err := cmd.Close(); err != nil {
			return fmt.Errorf("storing flags in %s: %w", mailbox, err)
		}
	}
	return nil
}

// MoveToFolder moves one message to another mailbox.
func (c *Client) MoveToFolder(ctx context.Context, id mail.MailID, folderID string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	mailbox, uid, err := decodeID(id)
	if err != nil {
		return err
	}
	if err := c.selectMailbox(mailbox); err != nil {
		return err
	}
	if _, err := c.cli.Move(imap.UIDSetNum(uid), folderID).Wait(); err != nil {
		return fmt.Errorf("moving uid %d to %s: %w", uid, folderID, err)
	}
	return nil
}

// VerifyMove searches the destination mailbox for the message's
// Message-ID header and reports its new identifier.
func (c *Client) VerifyMove(ctx context.Context, uniqueID, folderID string, maxResults int) (mail.MoveCheck, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.selectMailbox(folderID); err != nil {
		return mail.MoveCheck{}, err
	}
	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "Message-Id", Value: uniqueID}},
	}
	data, err := c.cli.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return mail.MoveCheck{}, fmt.Errorf("searching %s for message-id: %w", folderID, err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return mail.MoveCheck{Found: false}, nil
	}
	if maxResults > 0 && len(uids) > maxResults {
		uids = uids[len(uids)-maxResults:]
	}
	// The highest UID is the most recently delivered copy.
	uid := uids[len(uids)-1]

	msgs, err := c.cli.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{Envelope: true, UID: true}).Collect()
	if err != nil {
		return mail.MoveCheck{}, fmt.Errorf("fetching moved message: %w", err)
	}
	check := mail.MoveCheck{Found: true, NewID: encodeID(folderID, uid, uniqueID)}
	if len(msgs) > 0 && msgs[0].Envelope != nil {
		check.Subject = msgs[0].Envelope.Subject
		check.HasSubject = true
		check.Sender = firstAddress(msgs[0].Envelope.From)
	}
	return check, nil
}

// QueryMailList returns the newest messages of the given mailboxes,
// newest first.
func (c *Client) QueryMailList(ctx context.Context, folderIDs []string, limit, offset int) (mail.ListResult, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	result := mail.ListResult{}
	remaining := limit
	for _, folder := range folderIDs {
		if limit > 0 && remaining <= 0 {
			break
		}
		sel, err := c.cli.Select(folder, nil).Wait()
		if err != nil {
			return result, fmt.Errorf("selecting mailbox %s: %w", folder, err)
		}
		c.selected = folder
		total := int(sel.NumMessages)
		result.Total += total
		if total == 0 {
			continue
		}

		hi := total - offset
		if hi <= 0 {
			continue
		}
		lo := 1
		if limit > 0 && hi-remaining+1 > lo {
			lo = hi - remaining + 1
		}

		msgs, err := c.cli.Fetch(
			imap.SeqSet{{Start: uint32(lo), Stop: uint32(hi)}},
			&imap.FetchOptions{Envelope: true, UID: true},
		).Collect()
		if err != nil {
			return result, fmt.Errorf("listing mailbox %s: %w", folder, err)
		}
		// Newest first.
		for i := len(msgs) - 1; i >= 0; i-- {
			msg := msgs[i]
			h := mail.Header{ID: encodeID(folder, msg.UID, messageID(msg))}
			if env := msg.Envelope; env != nil {
				h.Subject = env.Subject
				h.Sender = firstAddress(env.From)
			}
			result.Headers = append(result.Headers, h)
			remaining--
		}
	}
	return result, nil
}

// Directory lists the account's mailboxes. Folder names resolve to
// themselves; any label name resolves to a keyword-safe form of itself,
// since IMAP keywords need no pre-registration.
func (c *Client) Directory(ctx context.Context) (mail.Directory, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	boxes, err := c.cli.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}
	folders := make(map[string]string, len(boxes))
	for _, b := range boxes {
		folders[b.Mailbox] = b.Mailbox
	}
	return keywordDirectory{folders: folders}, nil
}

type keywordDirectory struct {
	folders map[string]string
}

func (d keywordDirectory) LabelID(name string) (string, bool) {
	return sanitizeKeyword(name), true
}

func (d keywordDirectory) FolderID(name string) (string, bool) {
	id, ok := d.folders[name]
	return id, ok
}

// sanitizeKeyword strips characters IMAP atoms cannot carry.
func sanitizeKeyword(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '(', ')', '{', '}', '%', '*', '"', '\\', ']':
			return '_'
		}
		return r
	}, name)
}

func encodeID(mailbox string, uid imap.UID, messageID string) mail.MailID {
	return mail.MailID(fmt.Sprintf("%s_%d:%s", mailbox, uid, messageID))
}

// decodeID splits "<mailbox>_<uid>:<message-id>". The mailbox name may
// itself contain underscores, so the UID is taken from the last '_'
// before the first ':'.
func decodeID(id mail.MailID) (string, imap.UID, error) {
	s := string(id)
	head := s
	if i := strings.Index(s, ":"); i >= 0 {
		head = s[:i]
	}
	j := strings.LastIndex(head, "_")
	if j < 0 {
		return "", 0, fmt.Errorf("malformed mail id %q", id)
	}
	uid, err := strconv.ParseUint(head[j+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed mail id %q: %w", id, err)
	}
	return head[:j], imap.UID(uid), nil
}

func messageID(msg *imapclient.FetchMessageBuffer) string {
	if msg.Envelope != nil && msg.Envelope.MessageID != "" {
		return msg.Envelope.MessageID
	}
	// Without a Message-ID the identifier cannot survive a move; fall
	// back to the UID so the id at least stays unique within the folder.
	return fmt.Sprintf("uid-%d", msg.UID)
}

func firstAddress(addrs []imap.Address) *mail.Address {
	if len(addrs) == 0 {
		return nil
	}
	a := toAddress(addrs[0])
	return &a
}

func toAddress(a imap.Address) mail.Address {
	return mail.Address{DisplayName: a.Name, Email: a.Addr()}
}

func toAddresses(addrs []imap.Address) []mail.Address {
	out := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, toAddress(a))
	}
	return out
}

// extractText pulls the text/plain part of a MIME message, falling back
// to text/html and finally to the raw bytes.
func extractText(raw []byte) string {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body)
		case strings.HasPrefix(contentType, "text/html"):
			html = string(body)
		}
	}
	if html != "" {
		return html
	}
	return string(raw)
}

var _ mail.Mailbox = (*Client)(nil)
