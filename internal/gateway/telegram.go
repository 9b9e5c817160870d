package gateway

import (
	"context"
	log "log/slog"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Telegram struct {
	bot    *tgbotapi.BotAPI
	client *http.Client
}

func NewTelegram(token string, client *http.Client) (*Telegram, error) {
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}

	log.Info("Authorized on Telegram", "bot", bot.Self.UserName)
	return &Telegram{bot: bot, client: client}, nil
}

// Run long-polls for updates until ctx is done.
func (t *Telegram) Run(ctx context.Context, g *Gateway) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := t.inbound(upd)
			if !ok {
				continue
			}
			chatID, replyTo := upd.Message.Chat.ID, upd.Message.MessageID
			g.Dispatch(ctx, msg, func(_ context.Context, text string) error {
				out := tgbotapi.NewMessage(chatID, text)
				out.ReplyToMessageID = replyTo
				_, err := t.bot.Send(out)
				return err
			})
		}
	}
}

func (t *Telegram) inbound(upd tgbotapi.Update) (InboundMessage, bool) {
	m := upd.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return InboundMessage{}, false
	}
	sender := strconv.FormatInt(m.From.ID, 10)

	switch {
	case m.Voice != nil:
		fileID := m.Voice.FileID
		return InboundMessage{
			SenderID: sender,
			Kind:     KindVoice,
			Audio: URL{
				Client: t.client,
				Resolve: func(context.Context) (string, error) {
					return t.bot.GetFileDirectURL(fileID)
				},
			},
		}, true
	case m.Text != "":
		return InboundMessage{SenderID: sender, Kind: KindText, Text: m.Text}, true
	default:
		return InboundMessage{}, false
	}
}
