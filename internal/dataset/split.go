package dataset

import (
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
)

// SplitByDate partitions ids by sent date: before trainEnd goes to train,
// before validationEnd to validation, the rest to test. Input order is kept.
func SplitByDate(mb *mailbox.Mailbox, ids []mailbox.MessageID, trainEnd, validationEnd time.Time) (train, validation, test []mailbox.MessageID) {
	for _, id := range ids {
		msg := mb.Message(id)
		if msg == nil {
			continue
		}
		switch {
		case msg.DateSent.Before(trainEnd):
			train = append(train, id)
		case msg.DateSent.Before(validationEnd):
			validation = append(validation, id)
		default:
			test = append(test, id)
		}
	}
	return train, validation, test
}

// ReceivedMessages returns the messages the owner could reply to: not sent by the owner
// and not filed as sent items or drafts.
func ReceivedMessages(mb *mailbox.Mailbox) []mailbox.MessageID {
	var ids []mailbox.MessageID
	for _, msg := range mb.Messages() {
		if mb.IsFromMe(msg.ID) {
			continue
		}
		if f := mb.Folder(msg.Folder); f != nil && (f.IsSentItems() || f.IsDrafts()) {
			continue
		}
		ids = append(ids, msg.ID)
	}
	return ids
}
