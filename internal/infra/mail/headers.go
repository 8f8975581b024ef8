package mail

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	domainmail "academic_outreach/internal/domain/mail"
)

// parseThreadHeaders extracts Message-ID and References from a raw header block.
func parseThreadHeaders(raw []byte) (*domainmail.SentMessage, error) {
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	h := mail.Header{Header: message.Header{Header: th}}

	id, err := h.MessageID()
	if err != nil || id == "" {
		id = strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
	}
	if id == "" {
		return nil, fmt.Errorf("message has no Message-ID")
	}

	return &domainmail.SentMessage{
		MessageID:  "<" + id + ">",
		References: strings.Join(strings.Fields(h.Get("References")), " "),
	}, nil
}
