package imap

import (
	"testing"

	"github.com/dotnet/mbmlbook-sub000/internal/testutil"
	"github.com/emersion/go-imap/client"
	"github.com/stretchr/testify/assert"
)

func TestListFolders(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*testing.T) *client.Client
		checkResult func(*testing.T, []string, error)
	}{
		{
			name: "returns error for nil client",
			setup: func(*testing.T) *client.Client {
				return nil
			},
			checkResult: func(t *testing.T, folders []string, err error) {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "client is nil")
			},
		},
		{
			name: "lists created folders",
			setup: func(t *testing.T) *client.Client {
				server := testutil.NewTestIMAPServer(t)
				t.Cleanup(server.Close)
				server.EnsureFolder(t, "Sent")
				server.EnsureFolder(t, "Archive")
				c, cleanup := server.Connect(t)
				t.Cleanup(cleanup)
				return c
			},
			checkResult: func(t *testing.T, folders []string, err error) {
				assert.NoError(t, err)
				assert.Subset(t, folders, []string{"INBOX", "Sent", "Archive"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			folders, err := ListFolders(tt.setup(t))
			tt.checkResult(t, folders, err)
		})
	}
}

func TestHasAttribute(t *testing.T) {
	assert.True(t, hasAttribute([]string{`\HasNoChildren`, `\Noselect`}, `\Noselect`))
	assert.False(t, hasAttribute(nil, `\Noselect`))
}
