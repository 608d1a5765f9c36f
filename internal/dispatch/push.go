package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/trip-matching/internal/events"
)

// PushSender posts one event to a downstream notification provider.
type PushSender interface {
	Send(ctx context.Context, e events.Event) error
}

// HTTPPush posts JSON events to a provider endpoint with a short timeout.
type HTTPPush struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewHTTPPush(endpoint, key string) *HTTPPush {
	return &HTTPPush{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (p *HTTPPush) Send(ctx context.Context, e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Key != "" {
		req.Header.Set("Authorization", "Bearer "+p.Key)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
