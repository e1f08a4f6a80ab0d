package mailbox

import (
	"strings"

	"golang.org/x/text/cases"
)

// FolderID identifies a folder inside a Mailbox.
type FolderID int

// NoFolder is returned for empty aggregates.
const NoFolder FolderID = -1

// FolderRole is the well-known purpose of a folder.
type FolderRole int

const (
	RoleOther FolderRole = iota
	RoleInbox
	RoleSentItems
	RoleJunk
	RoleDrafts
	RoleDeleted
	RoleUser
)

func (r FolderRole) String() string {
	switch r {
	case RoleInbox:
		return "Inbox"
	case RoleSentItems:
		return "SentItems"
	case RoleJunk:
		return "Junk"
	case RoleDrafts:
		return "Drafts"
	case RoleDeleted:
		return "Deleted"
	case RoleUser:
		return "User"
	default:
		return "Other"
	}
}

var (
	inboxNames   = []string{"inbox"}
	sentNames    = []string{"sent items", "sent", "sent mail", "sent messages", "[gmail]/sent mail"}
	junkNames    = []string{"junk", "junk e-mail", "junk email", "spam", "[gmail]/spam"}
	draftsNames  = []string{"drafts", "draft", "[gmail]/drafts"}
	deletedNames = []string{"deleted items", "deleted", "trash", "deleted messages", "[gmail]/trash"}
	systemNames  = []string{"outbox", "archive", "conversation history", "sync issues", "rss feeds",
		"calendar", "contacts", "tasks", "notes", "journal", "[gmail]/all mail", "[gmail]/important", "[gmail]/starred"}
)

type folderRoles struct {
	inbox, sent, junk, drafts, deleted, user bool
}

// Folder is a named bucket of messages.
type Folder struct {
	ID       FolderID
	Name     string
	Messages []MessageID

	roles *folderRoles
}

func (f *Folder) computeRoles() *folderRoles {
	if f.roles != nil {
		return f.roles
	}

	name := cases.Fold().String(strings.TrimSpace(f.Name))
	r := &folderRoles{
		inbox:   matchesAny(name, inboxNames),
		sent:    matchesAny(name, sentNames),
		junk:    matchesAny(name, junkNames),
		drafts:  matchesAny(name, draftsNames),
		deleted: matchesAny(name, deletedNames),
	}
	r.user = !r.inbox && !r.sent && !r.junk && !r.drafts && !r.deleted && !matchesAny(name, systemNames)
	f.roles = r
	return r
}

// IsInbox reports whether this is the inbox.
func (f *Folder) IsInbox() bool { return f.computeRoles().inbox }

// IsSentItems reports whether this folder holds sent mail.
func (f *Folder) IsSentItems() bool { return f.computeRoles().sent }

// IsJunk reports whether this is the junk/spam folder.
func (f *Folder) IsJunk() bool { return f.computeRoles().junk }

// IsDrafts reports whether this is the drafts folder.
func (f *Folder) IsDrafts() bool { return f.computeRoles().drafts }

// IsDeleted reports whether this is the trash folder.
func (f *Folder) IsDeleted() bool { return f.computeRoles().deleted }

// IsUserFolder reports whether this folder was created by the user, i.e. it is a move target.
func (f *Folder) IsUserFolder() bool { return f.computeRoles().user }

// Role returns the single role of the folder.
func (f *Folder) Role() FolderRole {
	r := f.computeRoles()
	switch {
	case r.inbox:
		return RoleInbox
	case r.sent:
		return RoleSentItems
	case r.junk:
		return RoleJunk
	case r.drafts:
		return RoleDrafts
	case r.deleted:
		return RoleDeleted
	case r.user:
		return RoleUser
	default:
		return RoleOther
	}
}

func matchesAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if name == c {
			return true
		}
	}
	return false
}
