// Package provider provides LLM provider abstraction using the Eino framework.
package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/daemonctl/daemonctl/pkg/types"
)

// Provider represents an LLM provider with an Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []*schema.Message  `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int                `json:"maxTokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	TopP        float64            `json:"topP,omitempty"`
	StopWords   []string           `json:"stopWords,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// ToolInfo represents a tool definition offered to the model, built from a
// toolcatalog.Definition's name/help/parameters.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ConvertToEinoTools converts tool definitions to Eino's tool-calling format.
func ConvertToEinoTools(tools []ToolInfo) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}

		result[i] = &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

// parseJSONSchemaToParams converts a JSON Schema object into Eino's
// ParameterInfo map.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}

// ConvertFromEinoMessage converts a completed (or merged-from-stream) Eino
// message into the flat session message record the agent loop appends.
func ConvertFromEinoMessage(msg *schema.Message) types.Message {
	out := types.Message{
		Role:         schemaRoleToType(msg.Role),
		Content:      msg.Content,
		ToolCalls:    convertToolCallsFromEino(msg.ToolCalls),
		Timestamp:    time.Now().Unix(),
		FinishReason: msg.ResponseMeta.FinishReason,
	}
	if out.Role == types.RoleTool {
		out.ToolCallID = msg.ToolCallID
	}
	return out
}

// ConvertToEinoMessages converts a session's flat message log into the Eino
// message slice a ChatModel.Stream call expects.
func ConvertToEinoMessages(messages []types.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		einoMsg := &schema.Message{
			Role:    typeRoleToSchema(msg.Role),
			Content: msg.Content,
			Name:    msg.Name,
		}
		if msg.Role == types.RoleTool {
			einoMsg.ToolCallID = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			einoMsg.ToolCalls = convertToolCallsToEino(msg.ToolCalls)
		}
		result = append(result, einoMsg)
	}
	return result
}

func typeRoleToSchema(role types.Role) schema.RoleType {
	switch role {
	case types.RoleUser:
		return schema.User
	case types.RoleSystem:
		return schema.System
	case types.RoleTool:
		return schema.Tool
	default:
		return schema.Assistant
	}
}

func schemaRoleToType(role schema.RoleType) types.Role {
	switch role {
	case schema.User:
		return types.RoleUser
	case schema.System:
		return types.RoleSystem
	case schema.Tool:
		return types.RoleTool
	default:
		return types.RoleAssistant
	}
}

func convertToolCallsToEino(calls []types.ToolCall) []schema.ToolCall {
	result := make([]schema.ToolCall, len(calls))
	for i, c := range calls {
		argsJSON, _ := json.Marshal(c.Args)
		result[i] = schema.ToolCall{
			ID: c.ID,
			Function: schema.FunctionCall{
				Name:      c.Name,
				Arguments: string(argsJSON),
			},
		}
	}
	return result
}

func convertToolCallsFromEino(calls []schema.ToolCall) []types.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	result := make([]types.ToolCall, len(calls))
	for i, c := range calls {
		var args map[string]any
		if c.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(c.Function.Arguments), &args)
		}
		result[i] = types.ToolCall{
			ID:   c.ID,
			Name: c.Function.Name,
			Args: args,
		}
	}
	return result
}
