package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/arcthur/brewva/internal/domain"
)

// UpdateToTurn builds a normalized turn envelope from an inbound Telegram
// update. ok is false for updates that carry no interpretable text message
// (callback queries, edited messages with empty text, etc.) — callers should
// silently drop those.
func UpdateToTurn(update tgbotapi.Update) (domain.Turn, bool) {
	if update.Message == nil {
		return domain.Turn{}, false
	}
	msg := update.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return domain.Turn{}, false
	}

	conversationID := fmt.Sprintf("telegram:%d", msg.Chat.ID)
	meta := domain.TurnMeta{}
	if msg.From != nil {
		meta.SenderID = strconv.FormatInt(msg.From.ID, 10)
		if msg.From.UserName != "" {
			meta.SenderUsername = "@" + msg.From.UserName
		}
	}

	return domain.Turn{
		Schema:         domain.TurnSchema,
		Kind:           domain.TurnKindUser,
		SessionID:      conversationID,
		TurnID:         uuid.NewString(),
		Channel:        "telegram",
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
		Parts:          []domain.Part{{Type: "text", Text: text}},
		Meta:           meta,
	}, true
}
