package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

func (c *Client) postJSON(ctx context.Context, endpoint, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}
	return c.do(ctx, c.httpClient, endpoint, out, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// post sends a bodiless POST.
func (c *Client) post(ctx context.Context, client *http.Client, endpoint, path string, out any) error {
	return c.do(ctx, client, endpoint, out, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	})
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out any) error {
	return c.do(ctx, c.httpClient, endpoint, out, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	})
}

func (c *Client) postMultipart(ctx context.Context, endpoint, path, filename string, file io.Reader, out any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create %s form: %w", endpoint, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("read %s file: %w", endpoint, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close %s form: %w", endpoint, err)
	}
	payload := body.Bytes()
	contentType := writer.FormDataContentType()

	return c.do(ctx, c.httpClient, endpoint, out, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
}

// do performs one guarded round trip and decodes a 2xx JSON body into out.
func (c *Client) do(
	ctx context.Context,
	client *http.Client,
	endpoint string,
	out any,
	newRequest func(context.Context) (*http.Request, error),
) error {
	started := time.Now()
	err := c.guard.Do(ctx, endpoint, func(ctx context.Context) error {
		req, err := newRequest(ctx)
		if err != nil {
			return fmt.Errorf("create %s request: %w", endpoint, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(endpoint, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return decodeError(endpoint, resp, err)
		}
		return nil
	}, countsAgainstBreaker)

	err = asTransportError(endpoint, err)
	outcome := outcomeOf(err)
	if c.observer != nil {
		c.observer.ObserveRemoteCall(endpoint, outcome, time.Since(started))
	}
	if err != nil {
		slog.Warn("remote_call",
			"endpoint", endpoint,
			"outcome", outcome,
			"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
			"error", err,
		)
		return err
	}
	slog.Debug("remote_call",
		"endpoint", endpoint,
		"outcome", outcome,
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	return nil
}
