package mail

import "testing"

func TestUniqueID(t *testing.T) {
	tests := []struct {
		id   MailID
		want string
	}{
		{"2_10543:DzzzzzbK9Gf", "DzzzzzbK9Gf"},
		{"2_10543:Dz:zz", "Dz:zz"}, // only the first ':' splits
		{"plain-id", "plain-id"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := UniqueID(tt.id); got != tt.want {
			t.Fatalf("UniqueID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestFolderToken(t *testing.T) {
	tests := []struct {
		id   MailID
		want string
	}{
		{"2_10543:DzzzzzbK9Gf", "2"},
		{"inbox_77:u", "inbox"},
		{"nodelimiter", "nodelimiter"},
	}
	for _, tt := range tests {
		if got := FolderToken(tt.id); got != tt.want {
			t.Fatalf("FolderToken(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		raw  string
		want Address
	}{
		{"Billing Dept <billing@example.com>", Address{DisplayName: "Billing Dept", Email: "billing@example.com"}},
		{"<bare@example.com>", Address{Email: "bare@example.com"}},
		{"Just A Name", Address{DisplayName: "Just A Name"}},
		{"  padded <p@x.io> ", Address{DisplayName: "padded", Email: "p@x.io"}},
	}
	for _, tt := range tests {
		if got := ParseAddress(tt.raw); got != tt.want {
			t.Fatalf("ParseAddress(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestContextMergeFillsOnlyGaps(t *testing.T) {
	mc := NewContext("1_1:u").WithSubject("known subject")
	mc.Merge(Detail{
		Subject: "fetched subject", HasSubject: true,
		Body: "fetched body", HasBody: true,
		Sender:     &Address{Email: "s@example.com"},
		Recipients: []Address{{Email: "r@example.com"}},
	})

	if mc.Subject != "known subject" {
		t.Fatalf("known subject overwritten: %q", mc.Subject)
	}
	if !mc.HasBody || mc.Body != "fetched body" {
		t.Fatalf("missing body not filled: %+v", mc)
	}
	if mc.Sender == nil || mc.Sender.Email != "s@example.com" {
		t.Fatalf("missing sender not filled")
	}
	if len(mc.Recipients) != 1 {
		t.Fatalf("missing recipients not filled")
	}

	// A second merge must not clobber anything.
	mc.Merge(Detail{
		Body: "other body", HasBody: true,
		Sender: &Address{Email: "other@example.com"},
	})
	if mc.Body != "fetched body" || mc.Sender.Email != "s@example.com" {
		t.Fatalf("second merge overwrote data: %+v", mc)
	}
}

func TestContextMergeEmptySubjectReplaced(t *testing.T) {
	// An empty known subject counts as a gap; listings sometimes carry
	// blank subjects for mail the backend has not indexed yet.
	mc := NewContext("1_1:u").WithSubject("")
	mc.Merge(Detail{Subject: "real subject", HasSubject: true})
	if mc.Subject != "real subject" {
		t.Fatalf("empty subject not backfilled: %q", mc.Subject)
	}
}
