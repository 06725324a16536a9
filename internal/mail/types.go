package mail

import (
	"regexp"
	"strings"
)

// MailID is the webmail identifier of one message. It is not stable:
// moving a message to another folder assigns it a new MailID. Only the
// portion after the first ':' survives a move (see UniqueID).
type MailID string

// Address is one mailbox participant.
type Address struct {
	DisplayName string
	Email       string
}

// Detail is the payload of a full message fetch. Has* flags and nil
// slices distinguish "the backend did not return this field" from a
// returned-but-empty value.
type Detail struct {
	Subject    string
	HasSubject bool
	Body       string
	HasBody    bool
	Sender     *Address
	Recipients []Address
	Cc         []Address
}

// Header is one entry of a mailbox listing.
type Header struct {
	ID      MailID
	Subject string
	From    string // raw header value, possibly "Name <addr>"
	Sender  *Address
}

// ListResult is a page of mailbox headers plus the backend's total count.
type ListResult struct {
	Headers []Header
	Total   int
}

// MoveCheck is the result of re-locating a message after a folder move.
type MoveCheck struct {
	Found      bool
	NewID      MailID
	Subject    string
	HasSubject bool
	Sender     *Address
}

// Context is the mutable working state threaded through one rule pass for
// a single message. Recipients/Cc nil means "not yet fetched"; an empty
// non-nil slice means "fetched, none exist". Body absence is likewise
// distinct from an empty body.
type Context struct {
	ID         MailID
	Subject    string
	HasSubject bool
	Body       string
	HasBody    bool
	Sender     *Address
	Recipients []Address
	Cc         []Address
}

// NewContext builds the initial state from a lightweight notification.
func NewContext(id MailID) Context {
	return Context{ID: id}
}

// WithSubject records a subject known at notification time.
func (c Context) WithSubject(subject string) Context {
	c.Subject = subject
	c.HasSubject = true
	return c
}

// WithSender records a sender known at notification time.
func (c Context) WithSender(sender *Address) Context {
	c.Sender = sender
	return c
}

// Merge fills gaps in the context from a full message fetch. Data already
// present is never overwritten; fetched fields only supply what was
// missing, so enrichment done for one rule carries over to later rules.
func (c *Context) Merge(d Detail) {
	if d.HasSubject && (!c.HasSubject || c.Subject == "") {
		c.Subject = d.Subject
		c.HasSubject = true
	}
	if d.HasBody && !c.HasBody {
		c.Body = d.Body
		c.HasBody = true
	}
	if c.Sender == nil && d.Sender != nil {
		c.Sender = d.Sender
	}
	if c.Recipients == nil && d.Recipients != nil {
		c.Recipients = d.Recipients
	}
	if c.Cc == nil && d.Cc != nil {
		c.Cc = d.Cc
	}
}

// UniqueID extracts the move-invariant part of a mail identifier: the
// portion after the first ':'. Identifiers without a ':' are wholly
// stable and returned unchanged.
func UniqueID(id MailID) string {
	s := string(id)
	if i := strings.Index(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// FolderToken extracts the folder prefix of a mail identifier (the part
// before the first '_'). Used to scope list queries when a notification
// carries only an id.
func FolderToken(id MailID) string {
	s := string(id)
	if i := strings.Index(s, "_"); i >= 0 {
		return s[:i]
	}
	return s
}

var combinedAddrRe = regexp.MustCompile(`(.*)<(.*)>`)

// ParseAddress splits a combined "Display Name <addr@example.com>" header
// value. Plain strings become a display name with no email.
func ParseAddress(raw string) Address {
	if m := combinedAddrRe.FindStringSubmatch(raw); m != nil {
		return Address{
			DisplayName: strings.TrimSpace(m[1]),
			Email:       strings.TrimSpace(m[2]),
		}
	}
	return Address{DisplayName: strings.TrimSpace(raw)}
}
