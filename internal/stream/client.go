package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"notebook-backend/pkg/logger"
)

// Client talks to the generation endpoints of the notebook server.
type Client struct {
	baseURL string
	http    *http.Client
	opts    []Option
}

func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		opts:    opts,
	}
}

// Stream POSTs body as JSON to path and assembles the streamed response.
func (c *Client) Stream(ctx context.Context, path string, body any, sink Sink) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body, "text/event-stream")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.Body == http.NoBody {
		return "", ErrBodyUnavailable
	}

	return Read(ctx, resp.Body, sink, c.opts...)
}

// GetJSON fetches path and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON sends body and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if payload != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, &RequestError{Message: err.Error(), Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Message: err.Error(), Err: err}
	}
	if resp.Body == nil {
		return nil, ErrBodyUnavailable
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		rerr := statusError(resp)
		logger.Warnf("%s %s failed: %s", method, path, rerr.Message)
		return nil, rerr
	}

	return resp, nil
}

// Conversation keeps at most one stream in flight. Starting a request
// cancels the previous one, and the previous sink is never called again once
// the new request has started.
type Conversation struct {
	client *Client
	path   string

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewConversation(client *Client, path string) *Conversation {
	return &Conversation{client: client, path: path}
}

func (c *Conversation) Send(ctx context.Context, body any, sink Sink) (string, error) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	id := c.seq
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.seq == id {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	// The lock is released before sink runs so the sink may call Send or Cancel.
	guarded := func(snapshot string) {
		c.mu.Lock()
		current := c.seq == id
		c.mu.Unlock()
		if current && sink != nil {
			sink(snapshot)
		}
	}

	return c.client.Stream(ctx, c.path, body, guarded)
}

// Cancel abandons the active stream, if any.
func (c *Conversation) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
}
