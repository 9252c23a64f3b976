package sdk

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Progress streams warm-up progress until the final event, ctx cancellation, or a
// closed connection. The most recent event is replayed first. The channel is closed
// when the stream ends.
func (c *Client) Progress(ctx context.Context) (<-chan ProgressEvent, error) {
	begin := time.Now()
	req, err := c.newRequest(ctx, http.MethodGet, "/warmup/progress", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET /warmup/progress: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return nil, apiErr
	}

	ch := make(chan ProgressEvent)
	go func() {
		var streamErr error
		defer func() { c.obs.observe("progress", begin, streamErr) }()
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var ev ProgressEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				streamErr = fmt.Errorf("decode event: %w", err)
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Done {
				return
			}
		}
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			streamErr = fmt.Errorf("read stream: %w", err)
		}
	}()
	return ch, nil
}
