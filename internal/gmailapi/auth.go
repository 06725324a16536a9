package gmailapi

import (
	"context"
	"fmt"

	"github.com/mbrt/gmailctl/cmd/gmailctl/localcred"
	gmail "google.golang.org/api/gmail/v1"
)

// NewService authenticates against Gmail using the oauth client
// credentials cached under cfgDir. The provider requests the modify
// scope; the first run walks the user through the browser consent flow
// and stores the token there.
func NewService(ctx context.Context, cfgDir string) (*gmail.Service, error) {
	svc, err := (localcred.Provider{}).Service(ctx, cfgDir)
	if err != nil {
		return nil, fmt.Errorf("gmail authentication: %w", err)
	}
	return svc, nil
}
