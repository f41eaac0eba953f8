package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/jperalta/sciquery-agent/internal/domain"
)

// GeminiClient implements domain.LLMClient on Vertex AI (Gemini).
type GeminiClient struct {
	client    *genai.Client
	modelName string
	now       func() time.Time
}

// NewGeminiClient creates the Vertex-backed language model client.
func NewGeminiClient(ctx context.Context, projectID, location, modelName string) (*GeminiClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("projectID and location are required for the Gemini client")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
		now:       time.Now,
	}, nil
}

// Generate implements domain.LLMClient.
func (g *GeminiClient) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error) {
	contents := toGenaiContents(req.Messages)

	temp := float32(0.7)
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: outputTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = toGenaiTools(req.Tools)
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	msg := &domain.Message{
		Role:      domain.RoleAssistant,
		Content:   res.Text(),
		CreatedAt: g.now(),
	}
	for _, fc := range res.FunctionCalls() {
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
			ID:   fc.ID,
			Name: fc.Name,
			Args: fc.Args,
		})
	}

	if msg.Content == "" && len(msg.ToolCalls) == 0 {
		return nil, fmt.Errorf("gemini returned neither text nor tool calls")
	}
	return msg, nil
}

// toGenaiContents maps the stored conversation onto the wire shape the
// model expects, including earlier tool-call rounds.
func toGenaiContents(msgs []*domain.Message) []*genai.Content {
	// Tool-result messages reference calls by id only; the function name
	// lives on the assistant message that requested them.
	callNames := make(map[string]string)

	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Name
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Args,
					},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))

		case domain.RoleTool:
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     callNames[m.ToolCallID],
					Response: map[string]any{"content": m.Content},
				},
			}}, genai.RoleUser))

		case domain.RoleSystem:
			// System text travels via SystemInstruction; anything persisted
			// as a system message is replayed as user context.
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))

		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents
}

func toGenaiTools(specs []domain.ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
