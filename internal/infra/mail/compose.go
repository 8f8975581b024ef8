package mail

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/k3a/html2text"
	"github.com/sirupsen/logrus"

	domainmail "academic_outreach/internal/domain/mail"
)

// attachment is a file loaded for inclusion in a message.
type attachment struct {
	name        string
	contentType string
	data        []byte
}

// newMessageID returns a fresh "<uuid@domain>" identifier.
func newMessageID(domain string) string {
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// loadAttachments reads every path that exists. Missing or unreadable
// files are logged and skipped.
func loadAttachments(paths []string, log *logrus.Entry) []attachment {
	out := make([]attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			log.WithError(err).WithField("path", p).Warn("Attachment file not found, skipping")
			continue
		}
		ct := mime.TypeByExtension(filepath.Ext(p))
		if ct == "" {
			ct = "application/octet-stream"
		}
		out = append(out, attachment{name: filepath.Base(p), contentType: ct, data: data})
	}
	return out
}

// composeMessage renders msg as multipart/mixed with a text/plain and
// text/html alternative followed by the attachments.
func composeMessage(from string, msg *domainmail.Message, messageID string, date time.Time, files []attachment) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	h.Set("Message-Id", messageID)
	if msg.InReplyTo != "" {
		h.Set("In-Reply-To", msg.InReplyTo)
	}
	if msg.References != "" {
		h.Set("References", msg.References)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	alt, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating alternative part: %w", err)
	}
	if err := writeInline(alt, "text/plain", html2text.HTML2Text(msg.HTML)); err != nil {
		return nil, err
	}
	if err := writeInline(alt, "text/html", msg.HTML); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("closing alternative part: %w", err)
	}

	for _, f := range files {
		var ah mail.AttachmentHeader
		ah.SetContentType(f.contentType, nil)
		ah.SetFilename(f.name)
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("creating attachment %s: %w", f.name, err)
		}
		if _, err := w.Write(f.data); err != nil {
			return nil, fmt.Errorf("writing attachment %s: %w", f.name, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("closing attachment %s: %w", f.name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInline(iw *mail.InlineWriter, contentType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := iw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return w.Close()
}
