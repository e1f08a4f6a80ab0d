package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFolderRoles(t *testing.T) {
	tests := []struct {
		name     string
		folder   string
		expected FolderRole
		isUser   bool
	}{
		{name: "inbox any case", folder: "INBOX", expected: RoleInbox},
		{name: "sent items", folder: "Sent Items", expected: RoleSentItems},
		{name: "gmail sent", folder: "[Gmail]/Sent Mail", expected: RoleSentItems},
		{name: "junk", folder: "Junk E-mail", expected: RoleJunk},
		{name: "spam", folder: "spam", expected: RoleJunk},
		{name: "drafts", folder: "Drafts", expected: RoleDrafts},
		{name: "deleted items", folder: "Deleted Items", expected: RoleDeleted},
		{name: "trash", folder: "Trash", expected: RoleDeleted},
		{name: "system folder", folder: "Outbox", expected: RoleOther},
		{name: "user folder", folder: "Projects/2024", expected: RoleUser, isUser: true},
		{name: "user folder with surrounding spaces", folder: "  Receipts ", expected: RoleUser, isUser: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Folder{Name: tt.folder}
			assert.Equal(t, tt.expected, f.Role())
			assert.Equal(t, tt.isUser, f.IsUserFolder())
			assert.Equal(t, tt.expected == RoleInbox, f.IsInbox())
			assert.Equal(t, tt.expected == RoleSentItems, f.IsSentItems())
			assert.Equal(t, tt.expected == RoleJunk, f.IsJunk())
			assert.Equal(t, tt.expected == RoleDrafts, f.IsDrafts())
			assert.Equal(t, tt.expected == RoleDeleted, f.IsDeleted())
		})
	}
}

func TestFolderRolesAreComputedOnce(t *testing.T) {
	f := &Folder{Name: "Inbox"}
	assert.True(t, f.IsInbox())

	f.Name = "Trash"
	assert.True(t, f.IsInbox(), "roles are cached on first access")
	assert.False(t, f.IsDeleted())
}
