// Package agent turns free-text chat into calls on the booking ledger
// through a Gemini tool-calling loop, and turns the results back into
// natural language.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"flawless/internal/metrics"
)

// Config holds the model settings for the agent.
type Config struct {
	APIKey        string
	Model         string
	SalonName     string
	MaxToolRounds int
}

// Agent owns the model, the static tool registry and the session store.
type Agent struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	registry  *Registry
	store     SessionStore
	maxRounds int
	logger    *zerolog.Logger
}

// New creates the agent and wires the tool declarations into the model.
func New(ctx context.Context, cfg Config, registry *Registry, store SessionStore, logger *zerolog.Logger) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "models/gemini-1.5-pro"
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.Tools = []*genai.Tool{{FunctionDeclarations: registry.Declarations()}}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(cfg.SalonName))},
	}

	return &Agent{
		client:    client,
		model:     model,
		registry:  registry,
		store:     store,
		maxRounds: cfg.MaxToolRounds,
		logger:    logger,
	}, nil
}

// Close releases the model client.
func (a *Agent) Close() error {
	return a.client.Close()
}

// Chat handles one conversational turn. The conversation id selects the
// session; "reset" clears it. The login flag is prefixed to the message
// for the prompt's login rule, but the stored history keeps the raw text.
func (a *Agent) Chat(ctx context.Context, conversationID, message string, loggedIn bool) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", fmt.Errorf("empty message")
	}
	if strings.EqualFold(trimmed, "reset") {
		if err := a.store.Clear(ctx, conversationID); err != nil {
			a.logger.Error().Err(err).Str("conversation", conversationID).Msg("failed to clear session")
		}
		return "Memory cleared.", nil
	}

	history, err := a.store.History(ctx, conversationID)
	if err != nil {
		a.logger.Error().Err(err).Str("conversation", conversationID).Msg("failed to load session; starting fresh")
		history = nil
	}

	chat := a.model.StartChat()
	chat.History = toModelHistory(history)

	input := fmt.Sprintf("[LOGGED_IN: %t] %s", loggedIn, trimmed)
	resp, err := chat.SendMessage(ctx, genai.Text(input))
	if err != nil {
		metrics.IncChatTurn("error")
		return "", fmt.Errorf("model call: %w", err)
	}

	for round := 0; round < a.maxRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			break
		}

		parts := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			a.logger.Debug().Str("tool", call.Name).Msg("tool call")
			output := a.registry.Dispatch(ctx, call.Name, call.Args)
			parts = append(parts, genai.FunctionResponse{
				Name:     call.Name,
				Response: map[string]any{"content": output},
			})
		}

		resp, err = chat.SendMessage(ctx, parts...)
		if err != nil {
			metrics.IncChatTurn("error")
			return "", fmt.Errorf("model call after tools: %w", err)
		}
	}

	reply := responseText(resp)
	if reply == "" {
		reply = "I'm sorry, I couldn't process that. Could you rephrase?"
	}

	if err := a.store.Append(ctx, conversationID,
		Message{Role: RoleUser, Text: trimmed},
		Message{Role: RoleModel, Text: reply},
	); err != nil {
		a.logger.Error().Err(err).Str("conversation", conversationID).Msg("failed to save session")
	}

	metrics.IncChatTurn("ok")
	return reply, nil
}

func toModelHistory(messages []Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		history = append(history, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}
	return history
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if call, ok := part.(genai.FunctionCall); ok {
				calls = append(calls, call)
			}
		}
		break // only the first candidate is used
	}
	return calls
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return strings.TrimSpace(sb.String())
}
