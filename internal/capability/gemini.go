package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

// GeminiInvoker executes capabilities against the Gemini API.
type GeminiInvoker struct {
	client *genai.Client
	model  string
}

// NewGeminiInvoker creates a Gemini-backed invoker.
func NewGeminiInvoker(ctx context.Context, apiKey, model string) (*GeminiInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("capability: gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("capability: create gemini client: %w", err)
	}
	return &GeminiInvoker{client: client, model: model}, nil
}

// Invoke runs one capability call. Transport failures surface as
// UnavailableError; a completed call with no parseable JSON structure
// surfaces as RejectedError. No retries here.
func (g *GeminiInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	prompt := buildPrompt(req)
	if prompt == "" {
		return nil, &RejectedError{Reason: fmt.Sprintf("no prompt for capability %q", req.Capability)}
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &RejectedError{Reason: "empty model response"}
	}
	return parseResult(text)
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// cleanResponse strips markdown code fences some models wrap around JSON.
func cleanResponse(text string) string {
	if strings.Contains(text, "```") {
		if m := codeFence.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.TrimSpace(text)
}

// parseResult decodes the model's JSON into a Result. A response that is
// not a JSON object is a rejection, not a transport failure.
func parseResult(text string) (*Result, error) {
	cleaned := cleanResponse(text)

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, &RejectedError{Reason: fmt.Sprintf("unparseable response: %v", err)}
	}

	result := &Result{Fields: fields, RawText: text}
	if c, ok := fields["confidence"].(float64); ok {
		result.Confidence = c
	}
	return result, nil
}
