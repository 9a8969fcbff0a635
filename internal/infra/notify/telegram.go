package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/infra/metrics"
)

var _ adapter.ProgressPresenter = (*TelegramPresenter)(nil)

// TelegramPresenter DMs terminal outcomes to an operations chat. Round ticks
// are deliberately not forwarded; a DM per second would be noise.
type TelegramPresenter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramPresenter(token string, chatID int64, logger *zerolog.Logger) (*TelegramPresenter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramPresenter{bot: bot, chatID: chatID, log: logger}, nil
}

func (p *TelegramPresenter) AttemptStarted(ref string) {}

func (p *TelegramPresenter) RoundTick(ref string, remaining int) {}

func (p *TelegramPresenter) Resolved(ref string, outcome model.Outcome) {
	var text string
	switch outcome {
	case model.OutcomeSucceeded:
		text = fmt.Sprintf("✅ Order %s settled.", ref)
	case model.OutcomeFailed:
		text = fmt.Sprintf("❌ Order %s failed at the gateway.", ref)
	case model.OutcomeProcessing:
		text = fmt.Sprintf("⏳ Order %s is still being processed. Check back later.", ref)
	case model.OutcomeCancelled:
		text = fmt.Sprintf("🚫 Order %s was cancelled.", ref)
	}

	// Delivery must not block the resolving attempt.
	go func() {
		if _, err := p.bot.Send(tgbotapi.NewMessage(p.chatID, text)); err != nil {
			metrics.IncOutcomeDM(string(outcome), "error")
			p.log.Warn().Str("order_ref", ref).Err(err).Msg("outcome DM failed")
			return
		}
		metrics.IncOutcomeDM(string(outcome), "sent")
	}()
}
