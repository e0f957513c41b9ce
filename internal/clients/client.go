package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const streamReadBufferSize = 4096

// Client is the shared streaming HTTP transport for provider APIs. It knows
// nothing about chunk semantics; decoding is the responsibility of the
// provider-specific clients layered on top.
type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

func newClient(apiKey, apiURL string) *Client {
	return &Client{
		apiKey: apiKey,
		apiURL: apiURL,
		// No client-level timeout: streaming responses stay open until the
		// request context is cancelled.
		httpClient: &http.Client{},
	}
}

// streamRequest POSTs the payload and returns a channel of raw response body
// chunks. The channel is closed at end of stream or on read failure; failures
// are logged here, not surfaced to the consumer. A connection or non-2xx
// failure before any chunk is returned as an error.
func (c *Client) streamRequest(ctx context.Context, payload []byte, extraHeaders map[string]string) (<-chan []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for key, value := range extraHeaders {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		buf := make([]byte, streamReadBufferSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					log.Error().Err(err).Str("url", c.apiURL).Msg("Provider stream read failed")
				}
				return
			}
		}
	}()
	return chunks, nil
}
