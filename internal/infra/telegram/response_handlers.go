package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"academic_outreach/internal/app"
	"academic_outreach/internal/domain/ledger"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const markUnique = "mark"

var keyboardStatuses = []ledger.ResponseStatus{
	ledger.StatusPositive,
	ledger.StatusNegative,
	ledger.StatusOutOfOffice,
	ledger.StatusFollowUpNeeded,
	ledger.StatusDoNotContact,
}

// responseKeyboard offers one button per reply status under a /status answer.
func responseKeyboard(subjectID int64) *telebot.ReplyMarkup {
	replyMarkup := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(keyboardStatuses))
	for _, st := range keyboardStatuses {
		rows = append(rows, replyMarkup.Row(replyMarkup.Data(st.String(), markUnique, fmt.Sprintf("%d:%d", subjectID, int(st)))))
	}
	replyMarkup.Inline(rows...)
	return replyMarkup
}

// parseMarkData decodes the callback payload "<subject_id>:<status>".
func parseMarkData(data string) (int64, ledger.ResponseStatus, error) {
	idPart, statusPart, ok := strings.Cut(data, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid callback data format: %q", data)
	}
	subjectID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid subject ID %q in callback: %w", idPart, err)
	}
	status, err := ledger.ParseResponseStatus(statusPart)
	if err != nil {
		return 0, 0, err
	}
	return subjectID, status, nil
}

func RegisterResponseHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle(&telebot.Btn{Unique: markUnique}, func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{"handler": "mark_callback", "sender_id": c.Sender().ID})
		if c.Sender().ID != adminTelegramID {
			log.Warn("Unauthorized callback")
			return c.Respond(&telebot.CallbackResponse{Text: msgUnauthorized})
		}

		subjectID, status, err := parseMarkData(c.Callback().Data)
		if err != nil {
			c.Bot().OnError(err, c)
			return c.Respond(&telebot.CallbackResponse{Text: "Could not process the answer."})
		}

		if err := adminService.MarkResponse(ctx, c.Sender().ID, subjectID, status); err != nil {
			c.Bot().OnError(fmt.Errorf("error marking subject %d as %s: %w", subjectID, status, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "An error occurred."})
		}
		log.WithFields(logrus.Fields{"subject_id": subjectID, "status": status.String()}).Info("Response status updated from keyboard")
		return c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Marked as %s", status)})
	})
}
