package mail

import "context"

// Fetcher obtains complete message detail for lazily populated fields.
type Fetcher interface {
	FetchFullMessage(ctx context.Context, id MailID) (Detail, error)
}

// Mailbox is the narrow webmail surface required by the rule engine. A
// backend returning an unsuccessful response surfaces it as an error; the
// engine downgrades any error to the corresponding step's failure and
// keeps going.
type Mailbox interface {
	Fetcher
	ApplyLabels(ctx context.Context, ids []MailID, labelIDs []string) error
	MarkRead(ctx context.Context, ids []MailID, read bool) error
	MoveToFolder(ctx context.Context, id MailID, folderID string) error
	VerifyMove(ctx context.Context, uniqueID, folderID string, maxResults int) (MoveCheck, error)
	QueryMailList(ctx context.Context, folderIDs []string, limit, offset int) (ListResult, error)
}

// Directory resolves label and folder names to backend identifiers. It is
// a read-only snapshot taken at the start of a run.
type Directory interface {
	LabelID(name string) (string, bool)
	FolderID(name string) (string, bool)
}

// MapDirectory is a Directory backed by plain name-to-id maps.
type MapDirectory struct {
	Labels  map[string]string
	Folders map[string]string
}

func (d MapDirectory) LabelID(name string) (string, bool) {
	id, ok := d.Labels[name]
	return id, ok
}

func (d MapDirectory) FolderID(name string) (string, bool) {
	id, ok := d.Folders[name]
	return id, ok
}

var _ Directory = MapDirectory{}
