package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

const welcome = `💸 <b>Игра: Потрать $1,000,000 за 5 минут</b>

Открывай мини-приложение и попробуй потратить миллион быстрее всех! Собирай чек, покупай предметы и попади в топ.

⏱️ На всё — 5 минут. Удачи!`

// Bot is the Telegram front door: it only hands out the mini-app button,
// the game itself runs over the HTTP API.
type Bot struct {
	api       *tgbotapi.BotAPI
	webAppURL string
}

func New(token, webAppURL string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return &Bot{
		api:       api,
		webAppURL: strings.TrimRight(webAppURL, "/"),
	}, nil
}

// Run long-polls for updates until the channel is closed.
func (b *Bot) Run() {
	log.Info().Str("username", b.api.Self.UserName).Msg("bot started")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		b.handleMessage(update.Message)
	}
}

// Stop ends the update loop.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() || msg.Command() != "start" {
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Нажми /start, чтобы играть")
		if _, err := b.api.Send(reply); err != nil {
			log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("failed to send reply")
		}
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, welcome)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.InlineKeyboardButton{
				Text:   "🎮 Играть",
				WebApp: &tgbotapi.WebAppInfo{URL: b.webAppURL + "/"},
			},
		),
	)

	if _, err := b.api.Send(reply); err != nil {
		log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("failed to send welcome")
	}
}
