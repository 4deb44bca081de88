package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arcthur/brewva/internal/acl"
	"github.com/arcthur/brewva/internal/bus"
	"github.com/arcthur/brewva/internal/command"
	"github.com/arcthur/brewva/internal/coordinator"
	"github.com/arcthur/brewva/internal/domain"
	"github.com/arcthur/brewva/internal/registry"
	"github.com/arcthur/brewva/internal/shared"
	"github.com/arcthur/brewva/internal/transport/telegram"
)

// onUpdate is the Transport handler: it normalizes the update into a turn,
// authorizes it, logs it to the event store, parses it into an intent and
// dispatches it, then replies with whatever text the intent produced.
func (a *app) onUpdate(update tgbotapi.Update) error {
	turn, ok := telegram.UpdateToTurn(update)
	if !ok {
		return nil
	}

	ctx, span := a.tracer.Start(context.Background(), "transport.ingress_received")
	defer span.End()
	ctx = shared.WithTraceID(ctx, turn.TurnID)
	logger := a.logger.With("trace_id", turn.TurnID, "session_id", turn.SessionID)

	if !acl.IsOwnerAuthorized(turn, a.cfg.ACL.Owners, acl.Mode(a.cfg.ACL.Mode)) {
		a.bus.Publish(bus.TopicTransportIngressRejected, bus.TransportEvent{
			SessionID: turn.SessionID, Status: "rejected", Detail: "acl_denied",
		})
		logger.Warn("ingress rejected by acl")
		return nil
	}
	a.bus.Publish(bus.TopicTransportIngressReceived, bus.TransportEvent{
		SessionID: turn.SessionID, Status: "accepted",
	})

	if _, err := a.events.Append(turn.SessionID, domain.EventRow{
		Type: domain.EventTurnStart,
		Turn: &turn,
	}); err != nil {
		logger.Error("event append failed", "error", err)
	}

	intent := command.Parse(turn.Text())
	reply := a.dispatchIntent(ctx, turn, intent)
	if reply == "" {
		return nil
	}
	if err := a.reply(ctx, turn, reply); err != nil {
		logger.Error("outbound reply failed", "error", err)
		return err
	}
	return nil
}

// dispatchIntent executes intent against the registry/coordinator and
// returns the text to reply with, or "" to stay silent.
func (a *app) dispatchIntent(ctx context.Context, turn domain.Turn, intent domain.Intent) string {
	switch intent.Kind {
	case domain.IntentError:
		// Plain chat text that matched neither a slash command nor an
		// @mention is left unanswered; every other parse failure (a
		// malformed command) gets its stable usage message echoed back.
		if intent.Message == "not_a_command" || intent.Message == "empty_input" {
			return ""
		}
		return intent.Message

	case domain.IntentList:
		return a.formatAgentList()

	case domain.IntentNewAgent:
		return a.handleNewAgent(intent)

	case domain.IntentDeleteAgent:
		return a.handleDeleteAgent(intent)

	case domain.IntentFocus:
		return a.handleFocus(turn, intent)

	case domain.IntentRun:
		res := a.fanOut(ctx, "fan_out", intent.AgentIDs, intent.Task)
		return formatFanOut(res)

	case domain.IntentDiscuss:
		res := a.discuss(ctx, intent.AgentIDs, intent.Topic, intent.MaxRounds)
		return formatDiscuss(res)

	case domain.IntentRouteAgent:
		res := a.fanOut(ctx, "route_agent", []string{intent.AgentID}, intent.Task)
		return formatFanOut(res)

	default:
		return ""
	}
}

func (a *app) formatAgentList() string {
	agents := a.registry.List()
	if len(agents) == 0 {
		return "no active agents"
	}
	var b strings.Builder
	for _, ag := range agents {
		if ag.DisplayName != "" {
			fmt.Fprintf(&b, "@%s (%s)\n", ag.AgentID, ag.DisplayName)
		} else {
			fmt.Fprintf(&b, "@%s\n", ag.AgentID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *app) handleNewAgent(intent domain.Intent) string {
	res, err := a.registry.CreateAgent(registry.CreateAgentRequest{RequestedAgentID: intent.AgentID})
	if err != nil {
		return fmt.Sprintf("could not create @%s: %v", intent.AgentID, err)
	}
	a.bus.Publish(bus.TopicRegistryAgentCreated, bus.AgentLifecycleEvent{AgentID: res.AgentID})
	if res.Revived {
		return fmt.Sprintf("@%s revived", res.AgentID)
	}
	return fmt.Sprintf("@%s created", res.AgentID)
}

func (a *app) handleDeleteAgent(intent domain.Intent) string {
	if err := a.registry.SoftDeleteAgent(intent.AgentID); err != nil {
		return fmt.Sprintf("could not delete @%s: %v", intent.AgentID, err)
	}
	a.bus.Publish(bus.TopicRegistryAgentSoftDeleted, bus.AgentLifecycleEvent{AgentID: intent.AgentID})
	return fmt.Sprintf("@%s deleted", intent.AgentID)
}

func (a *app) handleFocus(turn domain.Turn, intent domain.Intent) string {
	if err := a.registry.SetFocus(turn.ConversationID, intent.AgentID); err != nil {
		return fmt.Sprintf("could not focus @%s: %v", intent.AgentID, err)
	}
	a.bus.Publish(bus.TopicRegistryFocusChanged, bus.FocusChangedEvent{
		ConversationKey: turn.ConversationID, AgentID: intent.AgentID,
	})
	return fmt.Sprintf("focused on @%s", intent.AgentID)
}

// fanOut wraps coordinator.FanOut with the per-operation span and bus event
// that the ambient tracing layer adds on top of the dispatch itself.
func (a *app) fanOut(ctx context.Context, op string, agentIDs []string, task string) coordinator.FanOutResult {
	ctx, span := a.tracer.Start(ctx, "coordinator."+op)
	defer span.End()

	res := a.coordinator.FanOut(ctx, agentIDs, task)
	a.bus.Publish(bus.TopicCoordinatorFanOut, bus.CoordinatorDispatchEvent{
		Operation: op, AgentIDs: agentIDs, OK: res.OK, Error: res.Error,
	})
	return res
}

// discuss wraps coordinator.Discuss the same way fanOut wraps FanOut.
func (a *app) discuss(ctx context.Context, agentIDs []string, topic string, maxRounds *int) coordinator.DiscussResult {
	ctx, span := a.tracer.Start(ctx, "coordinator.discuss")
	defer span.End()

	res := a.coordinator.Discuss(ctx, agentIDs, topic, maxRounds)
	a.bus.Publish(bus.TopicCoordinatorDiscussRound, bus.CoordinatorDispatchEvent{
		Operation: "discuss", AgentIDs: agentIDs, OK: res.OK, Error: res.Error,
	})
	return res
}

func (a *app) reply(ctx context.Context, turn domain.Turn, text string) error {
	chatID, err := chatIDFromConversationID(turn.ConversationID)
	if err != nil {
		return err
	}
	_, err = a.telegramClient.SendMessage(ctx, chatID, text)
	if err == nil {
		a.bus.Publish(bus.TopicTransportOutboundSent, bus.TransportEvent{
			SessionID: turn.SessionID, Status: "sent",
		})
	}
	return err
}

func chatIDFromConversationID(conversationID string) (int64, error) {
	raw := strings.TrimPrefix(conversationID, "telegram:")
	return strconv.ParseInt(raw, 10, 64)
}
