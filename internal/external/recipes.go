package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pmg5408/grocery-meal-agent/internal/config"
	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// recipeSystemPrompt fixes the output contract for the model. The response
// must be a single JSON object so it can be parsed and validated directly.
const recipeSystemPrompt = `You are a meal planning assistant. Given a user's pantry inventory, ` +
	`suggest exactly 3 recipes suitable for the requested meal. Prefer ingredients from the ` +
	`PRIORITY list (they expire soon), fill in from the OTHER list, and use common pantry ` +
	`staples (oil, salt, spices) freely with id -1. Respond with a single JSON object:
{"recommendations": [{"description": "...", "items": [{"id": <pantry item id or -1>, ` +
	`"name": "...", "quantity": <number>, "unit": "..."}], "steps": ["..."], "timeEstimate": "..."}]}
The recommendations array must contain exactly 3 entries. Do not include any text outside the JSON object.`

// GenerationRequest is the input to one recipe generation call: the target
// window plus the user's pantry split by expiry urgency.
type GenerationRequest struct {
	Window        types.MealWindow
	PriorityItems []types.GenerationItem
	OtherItems    []types.GenerationItem
}

// RecipeClient calls the recipe generation gateway (an OpenAI-compatible chat
// completions API) and returns schema-validated recommendation lists.
type RecipeClient struct {
	base     *BaseClient
	cfg      config.GenerationConfig
	validate *validator.Validate
}

// NewRecipeClient creates a RecipeClient. The HTTP timeout comes from
// configuration; generation calls are slow and the timeout must cover model
// latency, not just transport.
func NewRecipeClient(cfg config.GenerationConfig, opts ...BaseClientOption) *RecipeClient {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &RecipeClient{
		base:     NewBaseClient(httpClient, "recipe-gateway", DefaultRetryPolicy(), opts...),
		cfg:      cfg,
		validate: validator.New(),
	}
}

// chatMessage / chatRequest / chatResponse are the wire shapes of the chat
// completions API.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate requests recommendations for one user and window. Transport and
// 5xx failures surface as upstream errors; a well-formed HTTP response whose
// content does not satisfy the recommendation schema surfaces as
// ErrCodeValidationSchema, which is retryable by contract since a fresh call
// may produce valid output.
func (c *RecipeClient) Generate(ctx context.Context, genReq GenerationRequest) (*types.RecipeList, error) {
	body, err := json.Marshal(c.buildRequest(genReq))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to marshal generation request", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build generation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeneration,
			fmt.Sprintf("generation gateway returned %d", resp.StatusCode), nil)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeneration,
			"failed to read generation response", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationSchema,
			"generation response is not valid JSON", err)
	}
	if len(chat.Choices) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationSchema,
			"generation response contains no choices", nil)
	}

	var list types.RecipeList
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &list); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationSchema,
			"generation content does not match recommendation schema", err)
	}
	if err := c.validate.Struct(&list); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationSchema,
			"generation content failed schema validation", err)
	}

	return &list, nil
}

// buildRequest assembles the chat payload: fixed system contract plus a user
// message describing the window and the pantry split.
func (c *RecipeClient) buildRequest(genReq GenerationRequest) chatRequest {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: recipeSystemPrompt},
			{Role: "user", Content: buildUserPrompt(genReq)},
		},
		Temperature: 0.7,
	}
	req.ResponseFormat.Type = "json_object"
	return req
}

func buildUserPrompt(genReq GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meal: %s\n\n", genReq.Window)

	b.WriteString("PRIORITY items (use these first, they expire soon):\n")
	writeItems(&b, genReq.PriorityItems)

	b.WriteString("\nOTHER items:\n")
	writeItems(&b, genReq.OtherItems)

	return b.String()
}

func writeItems(b *strings.Builder, items []types.GenerationItem) {
	if len(items) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "  - id=%d %s", item.ID, item.Name)
		if item.Brand != "" {
			fmt.Fprintf(b, " (%s)", item.Brand)
		}
		fmt.Fprintf(b, ", %.4g %s, owned %d days\n", item.Quantity, item.Unit, item.DaysOwned)
	}
}
