// Package llm drafts progress-report comments with an OpenAI-compatible API.
// The feature is optional: the rest of the application never depends on it.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mrbobgradebook/easygrade/internal/model"
)

// SubjectGrade is one line of a student's standing fed to the draft prompt.
type SubjectGrade struct {
	Subject string
	Group   string
	Percent string
	Letter  model.Letter
}

// Client wraps an OpenAI-compatible chat API.
type Client struct {
	api   *openai.Client
	model string
}

// New creates an LLM client against the given base URL.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint check: %w", err)
	}
	return nil
}

const draftSystemPrompt = `You are an elementary school teacher writing a short progress-report comment for a parent.
Write 2-4 warm, specific sentences in plain language. Mention strengths first, then one area to work on if the grades suggest it.
Do not list the raw numbers back; do not address the student directly. Reply with the comment text only.`

func buildDraftUserPrompt(studentName string, lines []SubjectGrade) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Student: %s\n", studentName)
	for _, l := range lines {
		fmt.Fprintf(&sb, "%s (%s): %s%% (%s)\n", l.Subject, l.Group, l.Percent, l.Letter)
	}
	return sb.String()
}

// DraftComment asks the model for a progress-report comment based on the
// student's per-subject standing.
func (c *Client) DraftComment(ctx context.Context, studentName string, lines []SubjectGrade) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: draftSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildDraftUserPrompt(studentName, lines)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
