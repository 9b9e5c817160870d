package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Bytes is an attachment already held in memory.
type Bytes []byte

func (b Bytes) Open(context.Context) (io.ReadCloser, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty attachment")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// URL is an attachment downloaded over HTTP on Open.
type URL struct {
	Resolve func(ctx context.Context) (string, error)
	Client  *http.Client
}

func (u URL) Open(ctx context.Context) (io.ReadCloser, error) {
	target, err := u.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download attachment: %s", resp.Status)
	}
	return resp.Body, nil
}
