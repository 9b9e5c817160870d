package intent

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
)

const promptTemplate = "Analyze the intent of the following text and respond with one of the following: " +
	"'list_events', 'create_event', 'delete_event', or 'unknown'. Text: %s"

var ErrEmptyReply = errors.New("empty classifier reply")

type Classifier struct {
	client openai.Client
	model  openai.ChatModel
}

func NewClassifier(client openai.Client, model string) *Classifier {
	c := &Classifier{client: client, model: openai.ChatModel(model)}
	if model == "" {
		c.model = openai.ChatModelGPT5Nano
	}
	return c
}

func Prompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

// Classify makes a single round trip to the model. Replies outside the label
// set decode to Unknown; only transport failures are returned as errors.
func (c *Classifier) Classify(ctx context.Context, text string) (Intent, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(Prompt(text)),
		},
		Model: c.model,
	})
	if err != nil {
		return Unknown, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Unknown, ErrEmptyReply
	}

	content := resp.Choices[0].Message.Content
	log.Debug("Classified", "raw", content)

	return Parse(content), nil
}
