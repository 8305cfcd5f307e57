package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// OllamaClient speaks the Ollama native chat protocol: POST /api/chat with
// a blocking JSON reply, or newline-delimited JSON fragments when streamed.
type OllamaClient struct {
	baseURL  string
	model    string
	defaults Options
	http     *http.Client
}

func NewOllamaClient(baseURL, model string, defaults Options) *OllamaClient {
	if model == "" {
		model = "llama3.1:70b"
	}
	return &OllamaClient{
		baseURL:  baseURL,
		model:    model,
		defaults: defaults,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	NumPredict    int     `json:"num_predict"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func (c *OllamaClient) Complete(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	resp, err := c.post(ctx, c.buildRequest(messages, opts, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return &Response{Content: parsed.Message.Content, Raw: raw}, nil
}

func (c *OllamaClient) Stream(ctx context.Context, messages []Message, opts Options) (*Stream, error) {
	resp, err := c.post(ctx, c.buildRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{
		closeFn: resp.Body.Close,
		next: func() (string, error) {
			for scanner.Scan() {
				line := bytes.TrimSpace(scanner.Bytes())
				if len(line) == 0 {
					continue
				}
				var frag ollamaChatResponse
				if err := json.Unmarshal(line, &frag); err != nil {
					continue // skip malformed fragments
				}
				if frag.Done {
					return "", ErrStreamDone
				}
				if frag.Message.Content != "" {
					return frag.Message.Content, nil
				}
			}
			if err := scanner.Err(); err != nil {
				return "", classifyNetErr(err)
			}
			return "", ErrStreamDone
		},
	}, nil
}

// Health probes the tags endpoint with a short deadline.
func (c *OllamaClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *OllamaClient) buildRequest(messages []Message, opts Options, stream bool) ollamaChatRequest {
	merged := c.defaults
	if opts.Temperature != 0 {
		merged.Temperature = opts.Temperature
	}
	if opts.TopP != 0 {
		merged.TopP = opts.TopP
	}
	if opts.RepeatPenalty != 0 {
		merged.RepeatPenalty = opts.RepeatPenalty
	}
	if opts.NumPredict != 0 {
		merged.NumPredict = opts.NumPredict
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}
	return ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Options: ollamaOptions{
			Temperature:   merged.Temperature,
			TopP:          merged.TopP,
			RepeatPenalty: merged.RepeatPenalty,
			NumPredict:    merged.NumPredict,
		},
	}
}

func (c *OllamaClient) post(ctx context.Context, body ollamaChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	return resp, nil
}

// classifyNetErr maps transport failures onto the upstream error classes.
func classifyNetErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
