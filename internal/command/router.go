// Package command implements the deterministic grammar that turns a single
// input string into a typed orchestration Intent. The router is pure: no I/O,
// no clock, no randomness — same input always parses to the same Intent.
package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/arcthur/brewva/internal/domain"
)

var agentIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// foldAgentID lower-folds an agent ID the way the registry does, so router
// output is already in canonical form.
func foldAgentID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isValidAgentID(s string) bool {
	return s != "" && agentIDPattern.MatchString(s)
}

// Parse parses a single normalized input string into an Intent.
func Parse(input string) domain.Intent {
	text := strings.TrimSpace(input)
	if text == "" {
		return domain.NewError("empty_input")
	}

	switch {
	case strings.HasPrefix(text, "/"):
		return parseSlashCommand(text)
	case strings.HasPrefix(text, "@"):
		return parseMention(text)
	default:
		return domain.NewError("not_a_command")
	}
}

func parseSlashCommand(text string) domain.Intent {
	fields := splitFirstWord(text)
	word := strings.ToLower(fields.head)
	rest := strings.TrimSpace(fields.tail)

	switch word {
	case "/new-agent":
		return parseNewAgent(rest)
	case "/run":
		return parseRun(rest)
	case "/discuss":
		return parseDiscuss(rest)
	case "/focus":
		return parseFocus(rest)
	case "/delete-agent":
		return parseDeleteAgent(rest)
	case "/list":
		if rest != "" {
			return domain.NewError("Usage: /list")
		}
		return domain.Intent{Kind: domain.IntentList}
	default:
		name := strings.TrimPrefix(word, "/")
		return domain.NewError(fmt.Sprintf("unknown_command:%s", name))
	}
}

type splitResult struct {
	head string
	tail string
}

// splitFirstWord splits on the first run of whitespace.
func splitFirstWord(text string) splitResult {
	parts := strings.SplitN(text, " ", 2)
	if len(parts) == 1 {
		return splitResult{head: parts[0]}
	}
	return splitResult{head: parts[0], tail: parts[1]}
}

// parseNewAgent handles:
//
//	/new-agent <name> [model=<token>]
//	/new-agent name=<name>[,] [model=<token>]
//	/new-agent name is <name>[,] [model=<token>]
func parseNewAgent(rest string) domain.Intent {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return domain.NewError("Usage: /new-agent <name>")
	}

	var name string
	var remainder string

	switch {
	case strings.HasPrefix(strings.ToLower(rest), "name is "):
		after := rest[len("name is "):]
		name, remainder = takeNextField(after)
	case strings.HasPrefix(strings.ToLower(rest), "name="):
		after := rest[len("name="):]
		name, remainder = takeNextField(after)
	default:
		name, remainder = takeNextField(rest)
	}

	name = strings.TrimSuffix(strings.TrimSpace(name), ",")
	agentID := foldAgentID(name)
	if !isValidAgentID(agentID) {
		return domain.NewError("Usage: /new-agent <name>")
	}

	model := ""
	remainder = strings.TrimSpace(remainder)
	for _, tok := range strings.Fields(remainder) {
		if strings.HasPrefix(strings.ToLower(tok), "model=") {
			model = tok[len("model="):]
		}
	}

	return domain.Intent{Kind: domain.IntentNewAgent, AgentID: agentID, Model: model}
}

// takeNextField returns the first whitespace-delimited field and the rest.
func takeNextField(s string) (string, string) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

var agentMentionPattern = regexp.MustCompile(`^@([a-z0-9_-]+),?$`)
var agentTokenPattern = regexp.MustCompile(`^@([A-Za-z0-9_-]+),?`)

// parseAgentList consumes a leading "@id[,]@id[,]..." run — comma-joined with
// or without surrounding whitespace — and returns the folded IDs plus the
// remaining, un-consumed text (topic/task).
func parseAgentList(rest string) ([]string, string) {
	cursor := rest
	var ids []string
	for {
		m := agentTokenPattern.FindStringSubmatch(cursor)
		if m == nil {
			break
		}
		ids = append(ids, foldAgentID(m[1]))
		cursor = cursor[len(m[0]):]
		trimmed := strings.TrimLeft(cursor, " ")
		if strings.HasPrefix(trimmed, "@") {
			cursor = trimmed
			continue
		}
		cursor = trimmed
		break
	}
	if len(ids) == 0 {
		return nil, rest
	}
	return ids, cursor
}

func parseRun(rest string) domain.Intent {
	ids, remainder := parseAgentList(rest)
	task := strings.TrimSpace(remainder)
	if len(ids) == 0 || task == "" {
		return domain.NewError("Usage: /run @a,@b <task>")
	}
	return domain.Intent{Kind: domain.IntentRun, AgentIDs: ids, Task: task}
}

var maxRoundsPattern = regexp.MustCompile(`(?i)^maxRounds=(-?\d+)$`)

func parseDiscuss(rest string) domain.Intent {
	ids, remainder := parseAgentList(rest)
	if len(ids) == 0 {
		return domain.NewError("Usage: /discuss @a,@b <topic>")
	}

	var maxRounds *int
	fields := strings.Fields(remainder)
	var topicFields []string
	for _, f := range fields {
		if m := maxRoundsPattern.FindStringSubmatch(f); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				maxRounds = &n
				continue
			}
		}
		topicFields = append(topicFields, f)
	}

	topic := strings.TrimSpace(strings.Join(topicFields, " "))
	if topic == "" {
		return domain.NewError("Usage: /discuss @a,@b <topic>")
	}

	return domain.Intent{Kind: domain.IntentDiscuss, AgentIDs: ids, Topic: topic, MaxRounds: maxRounds}
}

func parseFocus(rest string) domain.Intent {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "@") {
		return domain.NewError("Usage: /focus @agent")
	}
	fields := strings.Fields(rest)
	folded := foldAgentID(fields[0])
	m := agentMentionPattern.FindStringSubmatch(folded)
	if m == nil {
		return domain.NewError("Usage: /focus @agent")
	}
	return domain.Intent{Kind: domain.IntentFocus, AgentID: m[1]}
}

func parseDeleteAgent(rest string) domain.Intent {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "@") {
		return domain.NewError("Usage: /delete-agent @agent")
	}
	fields := strings.Fields(rest)
	folded := foldAgentID(fields[0])
	m := agentMentionPattern.FindStringSubmatch(folded)
	if m == nil {
		return domain.NewError("Usage: /delete-agent @agent")
	}
	return domain.Intent{Kind: domain.IntentDeleteAgent, AgentID: m[1]}
}

// parseMention handles a bare "@agent[,] task" with no leading slash.
func parseMention(text string) domain.Intent {
	fields := splitFirstWord(text)
	folded := foldAgentID(fields.head)
	m := agentMentionPattern.FindStringSubmatch(folded)
	if m == nil {
		return domain.NewError("not_a_command")
	}
	task := strings.TrimSpace(fields.tail)
	if task == "" {
		return domain.NewError("Usage: @agent <task>")
	}
	return domain.Intent{Kind: domain.IntentRouteAgent, AgentID: m[1], Task: task, ViaMention: true}
}
