package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/taskmaster-ai/taskmaster/internal/agent"
	"github.com/taskmaster-ai/taskmaster/internal/tools"
)

var (
	errEmptyResponse = errors.New("gemini returned no candidates")
	errNoUserTurn    = errors.New("last message must be a user or tool turn")
)

// LLMService is the Gemini backend. It implements agent.Model and
// vectorindex.Embedder.
type LLMService struct {
	client     *genai.Client
	chatModel  string
	embedModel string
	logger     *zap.Logger
}

func NewLLMService(ctx context.Context, apiKey, chatModel, embedModel string, logger *zap.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{
		client:     client,
		chatModel:  chatModel,
		embedModel: embedModel,
		logger:     logger,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error closing GenAI client", zap.Error(err))
		} else {
			s.logger.Debug("GenAI client closed")
		}
	}
}

// Embed returns the embedding of text.
func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// Complete sends the conversation to Gemini and returns its answer. Gemini
// function calls carry no ids, so fresh ones are assigned here.
func (s *LLMService) Complete(ctx context.Context, msgs []agent.Message, specs []tools.Spec) (agent.Message, error) {
	system, contents := toContents(msgs)
	if len(contents) == 0 || contents[len(contents)-1].Role != "user" {
		return agent.Message{}, errNoUserTurn
	}

	model := s.client.GenerativeModel(s.chatModel)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	model.Tools = toGenaiTools(specs)

	session := model.StartChat()
	last := contents[len(contents)-1]
	session.History = contents[:len(contents)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return agent.Message{}, fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	msg, err := parseResponse(resp)
	if err != nil {
		return agent.Message{}, err
	}
	s.logger.Debug("gemini answered",
		zap.Int("text_len", len(msg.Content)),
		zap.Int("tool_calls", len(msg.ToolCalls)))
	return msg, nil
}

// toContents maps agent messages onto Gemini turns. System messages become
// the system instruction; consecutive tool results are folded into a single
// user turn of function responses.
func toContents(msgs []agent.Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, m := range msgs {
		switch m.Role {
		case agent.RoleSystem:
			system = append(system, m.Content)
		case agent.RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		case agent.RoleAssistant:
			var parts []genai.Part
			if m.Content != "" {
				parts = append(parts, genai.Text(m.Content))
			}
			for _, c := range m.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: c.Name, Args: c.Args})
			}
			if len(parts) == 0 {
				parts = append(parts, genai.Text(""))
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case agent.RoleTool:
			part := genai.FunctionResponse{Name: m.Name, Response: map[string]any{"result": m.Content}}
			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{part}})
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func isFunctionResponseTurn(c *genai.Content) bool {
	if c.Role != "user" || len(c.Parts) == 0 {
		return false
	}
	_, ok := c.Parts[0].(genai.FunctionResponse)
	return ok
}

func toGenaiTools(specs []tools.Spec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		props := make(map[string]*genai.Schema, len(spec.Params))
		for _, p := range spec.Params {
			props[p.Name] = &genai.Schema{Type: schemaType(p.Type), Description: p.Description}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   spec.Required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func schemaType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func parseResponse(resp *genai.GenerateContentResponse) (agent.Message, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return agent.Message{}, errEmptyResponse
	}

	msg := agent.Message{Role: agent.RoleAssistant}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
				ID:   uuid.NewString(),
				Name: p.Name,
				Args: p.Args,
			})
		}
	}
	msg.Content = text.String()
	return msg, nil
}
