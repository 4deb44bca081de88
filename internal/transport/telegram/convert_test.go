package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arcthur/brewva/internal/domain"
)

func TestUpdateToTurnHappyPath(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			Text:      "hello there",
			Chat:      &tgbotapi.Chat{ID: 555},
			From:      &tgbotapi.User{ID: 777, UserName: "alice"},
		},
	}

	turn, ok := UpdateToTurn(update)
	if !ok {
		t.Fatal("expected ok=true for a valid text message")
	}
	if turn.Kind != domain.TurnKindUser {
		t.Fatalf("unexpected kind: %v", turn.Kind)
	}
	if turn.Channel != "telegram" {
		t.Fatalf("unexpected channel: %v", turn.Channel)
	}
	if turn.ConversationID != "telegram:555" || turn.SessionID != "telegram:555" {
		t.Fatalf("unexpected conversation/session id: %+v", turn)
	}
	if turn.Meta.SenderID != "777" || turn.Meta.SenderUsername != "@alice" {
		t.Fatalf("unexpected sender meta: %+v", turn.Meta)
	}
	if len(turn.Parts) != 1 || turn.Parts[0].Text != "hello there" {
		t.Fatalf("unexpected parts: %+v", turn.Parts)
	}
	if turn.TurnID == "" {
		t.Fatal("expected a generated turn id")
	}
}

func TestUpdateToTurnRejectsNilMessage(t *testing.T) {
	_, ok := UpdateToTurn(tgbotapi.Update{})
	if ok {
		t.Fatal("expected ok=false for an update with no message")
	}
}

func TestUpdateToTurnRejectsEmptyText(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: "   ",
			Chat: &tgbotapi.Chat{ID: 1},
		},
	}
	_, ok := UpdateToTurn(update)
	if ok {
		t.Fatal("expected ok=false for a message with blank text")
	}
}

func TestUpdateToTurnWithoutFromStillProducesTurn(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: "no sender info",
			Chat: &tgbotapi.Chat{ID: 9},
		},
	}
	turn, ok := UpdateToTurn(update)
	if !ok {
		t.Fatal("expected ok=true even without From")
	}
	if turn.Meta.SenderID != "" {
		t.Fatalf("expected empty sender id, got %q", turn.Meta.SenderID)
	}
}
