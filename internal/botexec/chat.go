package botexec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/llm"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/render"
	"github.com/alfredjeanlab/lowcode/internal/tools"
)

const (
	// HistoryWindow is how many stored messages are sent as context.
	HistoryWindow = 20
	// MaxToolRounds bounds how many times one chat turn may run tools.
	MaxToolRounds = 3
)

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Message  *model.ChatMessage   `json:"message"`
	Reply    *model.ChatMessage   `json:"reply"`
	ToolRuns []*model.ChatMessage `json:"tool_runs"`
}

// ToolExecuted is the payload of tool execution events.
type ToolExecuted struct {
	ToolID string `json:"tool_id"`
	BotID  string `json:"bot_id,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// MessageCreated is the payload of chat message events. Message content
// stays in the chat history.
type MessageCreated struct {
	MessageID  string     `json:"message_id"`
	BotID      string     `json:"bot_id"`
	InstanceID string     `json:"instance_id"`
	Role       model.Role `json:"role"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// Chat sends text from userID to a running bot and returns its reply.
func (s *Service) Chat(ctx context.Context, botID, userID, text string) (*ChatResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	bot, err := s.ownedBot(ctx, botID, userID)
	if err != nil {
		return nil, err
	}
	inst, found, err := s.loadInstance(ctx, botID, userID)
	if err != nil {
		return nil, err
	}
	if !found || inst.Status != model.InstanceRunning {
		return nil, ErrNotRunning
	}

	result := &ChatResult{ToolRuns: []*model.ChatMessage{}}
	result.Message, err = s.persist(ctx, inst, model.RoleUser, text, "")
	if err != nil {
		return nil, err
	}

	system, err := s.systemPrompt(ctx, bot, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListMessages(ctx, botID, userID, HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	botTools, err := s.botTools(ctx, bot)
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		Model:       bot.Model,
		Temperature: bot.Temperature,
		Messages:    buildMessages(system, history),
	}
	for _, t := range botTools {
		req.Tools = append(req.Tools, tools.Spec(t))
	}

	var resp llm.Response
	for round := 0; ; round++ {
		if round == MaxToolRounds {
			// Force a plain answer once the tool budget is spent.
			req.Tools = nil
		}
		resp, err = s.provider.Complete(ctx, req)
		if err != nil {
			if errors.Is(err, llm.ErrNotConfigured) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if len(resp.ToolCalls) == 0 || len(req.Tools) == 0 {
			break
		}

		req.Messages = append(req.Messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			output := s.runTool(ctx, bot, userID, botTools, call)
			msg, err := s.persist(ctx, inst, model.RoleTool, output, call.Name)
			if err != nil {
				return nil, err
			}
			result.ToolRuns = append(result.ToolRuns, msg)
			req.Messages = append(req.Messages, llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: output})
		}
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		reply = "(no response)"
	}
	result.Reply, err = s.persist(ctx, inst, model.RoleAssistant, reply, "")
	if err != nil {
		return nil, err
	}
	return result, nil
}

// History returns the most recent limit messages, oldest first.
func (s *Service) History(ctx context.Context, botID, userID string, limit int) ([]*model.ChatMessage, error) {
	if _, err := s.ownedBot(ctx, botID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, botID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*model.ChatMessage{}
	}
	return msgs, nil
}

func (s *Service) persist(ctx context.Context, inst *model.BotInstance, role model.Role, content, toolName string) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:         idgen.MustGenerate(idgen.PrefixMessage),
		BotID:      inst.BotID,
		UserID:     inst.UserID,
		InstanceID: inst.ID,
		Role:       role,
		Content:    content,
		ToolName:   toolName,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save %s message: %w", role, err)
	}
	s.broadcast(ctx, msg)
	s.record(ctx, events.TopicMessageCreated, msg.BotID, msg.UserID, MessageCreated{
		MessageID:  msg.ID,
		BotID:      msg.BotID,
		InstanceID: msg.InstanceID,
		Role:       msg.Role,
		ToolName:   msg.ToolName,
	})
	return msg, nil
}

// systemPrompt joins the rendered prompt template with the bot's own
// system prompt.
func (s *Service) systemPrompt(ctx context.Context, bot *model.Bot, userID string) (string, error) {
	var parts []string
	if bot.PromptID != "" {
		p, err := s.store.GetPrompt(ctx, bot.PromptID)
		switch {
		case err != nil:
			// A deleted prompt degrades to the bot's own system prompt.
			s.logger.Warn("bot prompt unavailable", "bot", bot.ID, "prompt", bot.PromptID, "err", err)
		case p.Latest != nil:
			r, err := render.Prompt(p.Latest, map[string]any{
				"bot_name": bot.Name,
				"user_id":  userID,
			})
			if err != nil {
				return "", fmt.Errorf("render prompt %s: %w", p.ID, err)
			}
			if r.System != "" {
				parts = append(parts, r.System)
			}
		}
	}
	if sp := strings.TrimSpace(bot.SystemPrompt); sp != "" {
		parts = append(parts, sp)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (s *Service) botTools(ctx context.Context, bot *model.Bot) ([]*model.BotTool, error) {
	if len(bot.ToolIDs) == 0 || s.tools == nil {
		return nil, nil
	}
	ts, err := s.store.GetToolsByIDs(ctx, bot.ToolIDs)
	if err != nil {
		return nil, fmt.Errorf("load bot tools: %w", err)
	}
	return ts, nil
}

// runTool executes one model tool call and returns the text fed back to the
// model. Failures are reported to the model rather than aborting the turn.
func (s *Service) runTool(ctx context.Context, bot *model.Bot, userID string, available []*model.BotTool, call llm.ToolCall) string {
	var tool *model.BotTool
	for _, t := range available {
		if t.Name == call.Name {
			tool = t
			break
		}
	}
	if tool == nil {
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}

	input, err := tools.ParseArguments(call.Arguments)
	if err != nil {
		return "error: " + err.Error()
	}
	res, err := s.tools.Execute(ctx, tool, input)
	ev := ToolExecuted{ToolID: tool.ID, BotID: bot.ID, OK: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	s.record(ctx, events.TopicToolExecuted, tool.ID, userID, ev)
	if err != nil {
		s.logger.Warn("bot tool failed", "bot", bot.ID, "tool", tool.Name, "err", err)
		if res.Output != "" {
			return "error: " + err.Error() + "\n" + res.Output
		}
		return "error: " + err.Error()
	}
	return res.Output
}

// buildMessages converts stored history into provider messages. Stored tool
// results lack call ids and are folded into system notes.
func buildMessages(system string, history []*model.ChatMessage) []llm.Message {
	var msgs []llm.Message
	if system != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	for _, m := range history {
		switch m.Role {
		case model.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case model.RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		case model.RoleTool:
			msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: fmt.Sprintf("Tool %s returned: %s", m.ToolName, m.Content)})
		case model.RoleSystem:
			msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: m.Content})
		}
	}
	return msgs
}
