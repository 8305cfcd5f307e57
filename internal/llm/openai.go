package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient serves OpenAI-compatible backends through the official SDK.
// Repeat penalty has no equivalent on this protocol and is not sent.
type OpenAIClient struct {
	client openai.Client
	model  string
	opts   Options
}

func NewOpenAIClient(apiKey, model, baseURL string, defaults Options) *OpenAIClient {
	var reqOpts []option.RequestOption
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	return &OpenAIClient{client: openai.NewClient(reqOpts...), model: model, opts: defaults}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages, opts))
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrBadResponse)
	}
	return &Response{
		Content: resp.Choices[0].Message.Content,
		Raw:     []byte(resp.RawJSON()),
	}, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, messages []Message, opts Options) (*Stream, error) {
	sse := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages, opts))
	return &Stream{
		closeFn: sse.Close,
		next: func() (string, error) {
			for sse.Next() {
				chunk := sse.Current()
				if len(chunk.Choices) == 0 {
					continue
				}
				if delta := chunk.Choices[0].Delta.Content; delta != "" {
					return delta, nil
				}
			}
			if err := sse.Err(); err != nil {
				return "", classifyOpenAIErr(err)
			}
			return "", ErrStreamDone
		},
	}, nil
}

func (c *OpenAIClient) Health(ctx context.Context) bool {
	_, err := c.client.Models.List(ctx)
	return err == nil
}

func (c *OpenAIClient) params(messages []Message, opts Options) openai.ChatCompletionNewParams {
	merged := c.opts
	if opts.Temperature != 0 {
		merged.Temperature = opts.Temperature
	}
	if opts.TopP != 0 {
		merged.TopP = opts.TopP
	}
	if opts.NumPredict != 0 {
		merged.NumPredict = opts.NumPredict
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}

	oaiMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			oaiMsgs = append(oaiMsgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			oaiMsgs = append(oaiMsgs, openai.AssistantMessage(m.Content))
		default:
			oaiMsgs = append(oaiMsgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: oaiMsgs,
	}
	// Unset knobs are omitted, not sent as explicit zeros.
	if merged.Temperature > 0 {
		params.Temperature = openai.Float(merged.Temperature)
	}
	if merged.TopP > 0 {
		params.TopP = openai.Float(merged.TopP)
	}
	if merged.NumPredict > 0 {
		params.MaxCompletionTokens = openai.Int(int64(merged.NumPredict))
	}
	return params
}

func classifyOpenAIErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d", ErrBadResponse, apiErr.StatusCode)
	}
	return classifyNetErr(err)
}
