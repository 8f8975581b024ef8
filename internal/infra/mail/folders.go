package mail

import (
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// sentSpecialUse returns the first mailbox flagged \Sent that differs from
// the one already tried.
func sentSpecialUse(list []*imap.ListData, tried string) string {
	for _, mbox := range list {
		if mbox == nil || mbox.Mailbox == tried {
			continue
		}
		for _, attr := range mbox.Attrs {
			if attr == imap.MailboxAttrSent {
				return mbox.Mailbox
			}
		}
	}
	return ""
}

func mailboxNames(list []*imap.ListData) []string {
	names := make([]string, 0, len(list))
	for _, mbox := range list {
		if mbox != nil {
			names = append(names, mbox.Mailbox)
		}
	}
	return names
}

// latestMessage picks the message with the greatest internal date; ties go
// to the highest UID.
func latestMessage(msgs []*imapclient.FetchMessageBuffer) *imapclient.FetchMessageBuffer {
	var best *imapclient.FetchMessageBuffer
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if best == nil ||
			m.InternalDate.After(best.InternalDate) ||
			(m.InternalDate.Equal(best.InternalDate) && m.UID > best.UID) {
			best = m
		}
	}
	return best
}
