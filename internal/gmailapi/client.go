// Package gmailapi backs the rule engine's mailbox capabilities with the
// Gmail REST API. Gmail labels serve as both labels and folders; message
// identifiers are stable, so a verified move returns the same id.
package gmailapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/Alexmalab/mailsift/internal/mail"
)

const inboxLabel = "INBOX"

// Client implements mail.Mailbox on top of a Gmail service.
type Client struct {
	svc *gmail.Service
}

// NewClient wraps an authenticated Gmail service.
func NewClient(svc *gmail.Service) *Client {
	return &Client{svc: svc}
}

// FetchFullMessage downloads one message in full format.
func (c *Client) FetchFullMessage(ctx context.Context, id mail.MailID) (mail.Detail, error) {
	msg, err := c.svc.Users.Messages.Get("me", string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return mail.Detail{}, fmt.Errorf("fetching message %s: %w", id, err)
	}

	detail := mail.Detail{}
	headers := headerMap(msg.Payload)
	if subject, ok := headers["subject"]; ok {
		detail.Subject = subject
		detail.HasSubject = true
	}
	if from, ok := headers["from"]; ok {
		addr := mail.ParseAddress(from)
		detail.Sender = &addr
	}
	detail.Recipients = parseAddressList(headers["to"])
	detail.Cc = parseAddressList(headers["cc"])

	if body, ok := extractPlainText(msg.Payload); ok {
		detail.Body = body
		detail.HasBody = true
	}
	return detail, nil
}

// ApplyLabels adds label ids to each message in one batch call.
func (c *Client) ApplyLabels(ctx context.Context, ids []mail.MailID, labelIDs []string) error {
	req := &gmail.BatchModifyMessagesRequest{
		Ids:         toStrings(ids),
		AddLabelIds: labelIDs,
	}
	if err := c.svc.Users.Messages.BatchModify("me", req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("applying labels: %w", err)
	}
	return nil
}

// MarkRead toggles the UNREAD system label.
func (c *Client) MarkRead(ctx context.Context, ids []mail.MailID, read bool) error {
	req := &gmail.BatchModifyMessagesRequest{Ids: toStrings(ids)}
	if read {
		req.RemoveLabelIds = []string{"UNREAD"}
	} else {
		req.AddLabelIds = []string{"UNREAD"}
	}
	if err := c.svc.Users.Messages.BatchModify("me", req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("marking read: %w", err)
	}
	return nil
}

// MoveToFolder swaps the inbox label for the destination label.
func (c *Client) MoveToFolder(ctx context.Context, id mail.MailID, folderID string) error {
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{folderID},
		RemoveLabelIds: []string{inboxLabel},
	}
	if _, err := c.svc.Users.Messages.Modify("me", string(id), req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("moving message %s: %w", id, err)
	}
	return nil
}

// VerifyMove re-reads the message and confirms the destination label is
// attached. Gmail ids survive label changes, so NewID equals the old id.
func (c *Client) VerifyMove(ctx context.Context, uniqueID, folderID string, maxResults int) (mail.MoveCheck, error) {
	_ = maxResults
	msg, err := c.svc.Users.Messages.Get("me", uniqueID).
		Format("metadata").MetadataHeaders("Subject", "From").
		Context(ctx).Do()
	if err != nil {
		return mail.MoveCheck{}, fmt.Errorf("verifying move of %s: %w", uniqueID, err)
	}
	labeled := false
	for _, l := range msg.LabelIds {
		if l == folderID {
			labeled = true
			break
		}
	}
	if !labeled {
		return mail.MoveCheck{Found: false}, nil
	}

	check := mail.MoveCheck{Found: true, NewID: mail.MailID(uniqueID)}
	headers := headerMap(msg.Payload)
	if subject, ok := headers["subject"]; ok {
		check.Subject = subject
		check.HasSubject = true
	}
	if from, ok := headers["from"]; ok {
		addr := mail.ParseAddress(from)
		check.Sender = &addr
	}
	return check, nil
}

// QueryMailList enumerates messages carrying any of the given labels.
func (c *Client) QueryMailList(ctx context.Context, folderIDs []string, limit, offset int) (mail.ListResult, error) {
	call := c.svc.Users.Messages.List("me")
	if len(folderIDs) > 0 {
		call = call.LabelIds(folderIDs...)
	}
	if limit > 0 {
		call = call.MaxResults(int64(limit + offset))
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return mail.ListResult{}, fmt.Errorf("listing messages: %w", err)
	}

	result := mail.ListResult{Total: int(res.ResultSizeEstimate)}
	msgs := res.Messages
	if offset > 0 {
		if offset >= len(msgs) {
			return result, nil
		}
		msgs = msgs[offset:]
	}
	for _, m := range msgs {
		meta, err := c.svc.Users.Messages.Get("me", m.Id).
			Format("metadata").MetadataHeaders("Subject", "From").
			Context(ctx).Do()
		if err != nil {
			return result, fmt.Errorf("reading message %s: %w", m.Id, err)
		}
		headers := headerMap(meta.Payload)
		result.Headers = append(result.Headers, mail.Header{
			ID:      mail.MailID(m.Id),
			Subject: headers["subject"],
			From:    headers["from"],
		})
	}
	return result, nil
}

// Directory snapshots the account's labels. Every label doubles as a
// folder target.
func (c *Client) Directory(ctx context.Context) (mail.Directory, error) {
	lr, err := c.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	byName := make(map[string]string, len(lr.Labels))
	for _, l := range lr.Labels {
		byName[l.Name] = l.Id
	}
	return mail.MapDirectory{Labels: byName, Folders: byName}, nil
}

func toStrings(ids []mail.MailID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

// headerMap lowercases header names for lookup.
func headerMap(p *gmail.MessagePart) map[string]string {
	h := map[string]string{}
	if p == nil {
		return h
	}
	for _, hd := range p.Headers {
		h[strings.ToLower(hd.Name)] = hd.Value
	}
	return h
}

// parseAddressList always returns a non-nil slice: the header came from a
// successful fetch, so an absent or empty To/Cc means "fetched, none
// exist" rather than "not yet fetched".
func parseAddressList(raw string) []mail.Address {
	out := []mail.Address{}
	if raw == "" {
		return out
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, mail.ParseAddress(p))
	}
	return out
}

// extractPlainText walks the payload tree for the first text/plain part,
// falling back to text/html.
func extractPlainText(p *gmail.MessagePart) (string, bool) {
	if p == nil {
		return "", false
	}
	if text, ok := findPart(p, "text/plain"); ok {
		return text, true
	}
	return findPart(p, "text/html")
}

func findPart(p *gmail.MessagePart, mimeType string) (string, bool) {
	if p.MimeType == mimeType && p.Body != nil && p.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(p.Body.Data)
		if err != nil {
			return "", false
		}
		return string(decoded), true
	}
	for _, child := range p.Parts {
		if text, ok := findPart(child, mimeType); ok {
			return text, true
		}
	}
	return "", false
}

var _ mail.Mailbox = (*Client)(nil)
