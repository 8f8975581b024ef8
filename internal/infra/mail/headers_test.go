package mail

import (
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThreadHeaders(t *testing.T) {
	raw := "From: me@cs.uni.edu\r\n" +
		"To: prof@other.edu\r\n" +
		"Message-Id: <abc@cs.uni.edu>\r\n" +
		"References: <m0@cs.uni.edu>\r\n <m1@cs.uni.edu>\r\n" +
		"Subject: Re: Prospective Ph.D. Student\r\n\r\n"

	sent, err := parseThreadHeaders([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "<abc@cs.uni.edu>", sent.MessageID)
	assert.Equal(t, "<m0@cs.uni.edu> <m1@cs.uni.edu>", sent.References)
}

func TestParseThreadHeaders_NoMessageID(t *testing.T) {
	_, err := parseThreadHeaders([]byte("To: prof@other.edu\r\n\r\n"))
	assert.Error(t, err)
}

func TestSentSpecialUse(t *testing.T) {
	list := []*imap.ListData{
		{Mailbox: "INBOX"},
		{Mailbox: "Sent Items", Attrs: []imap.MailboxAttr{imap.MailboxAttrSent}},
		{Mailbox: "Drafts", Attrs: []imap.MailboxAttr{imap.MailboxAttrDrafts}},
	}
	assert.Equal(t, "Sent Items", sentSpecialUse(list, "INBOX.Sent"))
	assert.Equal(t, "", sentSpecialUse(list, "Sent Items"))
	assert.Equal(t, []string{"INBOX", "Sent Items", "Drafts"}, mailboxNames(list))
}

func TestLatestMessage(t *testing.T) {
	day := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []*imapclient.FetchMessageBuffer{
		{UID: 4, InternalDate: day},
		{UID: 9, InternalDate: day.Add(-time.Hour)},
		{UID: 7, InternalDate: day},
		{UID: 2, InternalDate: day.Add(-48 * time.Hour)},
	}
	best := latestMessage(msgs)
	require.NotNil(t, best)
	assert.Equal(t, imap.UID(7), best.UID)

	assert.Nil(t, latestMessage(nil))
}
