package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

// Messenger sends and edits plain text messages. It satisfies answer.Messenger.
type Messenger struct {
	s sender
}

func NewMessenger(api *tgbotapi.BotAPI) *Messenger {
	return &Messenger{s: botAPISender{api: api}}
}

// Send posts text to chatID, as a reply when replyTo is non-zero, and returns the new message id.
func (m *Messenger) Send(chatID int64, text string, replyTo int) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	sent, err := m.s.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (m *Messenger) Edit(chatID int64, messageID int, text string) error {
	_, err := m.s.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}
