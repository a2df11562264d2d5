package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// PostJSON performs one vendor API call and reduces the response to a
// SendResult. The vendor body is decoded as a JSON object when possible and
// kept raw otherwise, so callers get a uniform shape either way. A transport
// error returns a zero result and the error; a non-2xx response returns the
// decoded result with OK=false and no error, leaving the caller to decide.
func PostJSON(ctx context.Context, client *http.Client, url string, payload any) (SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req)
}

// PostJSONAuth is PostJSON with a bearer token, for APIs authenticated by
// header rather than query parameter.
func PostJSONAuth(ctx context.Context, client *http.Client, url, token string, payload any) (SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return do(client, req)
}

// PostForm performs a multipart/form-data vendor call with the prepared body
// and content type (used for two-phase attachment uploads).
func PostForm(ctx context.Context, client *http.Client, url string, contentType string, form io.Reader) (SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, form)
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", contentType)
	return do(client, req)
}

func do(client *http.Client, req *http.Request) (SendResult, error) {
	resp, err := client.Do(req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResult{StatusCode: resp.StatusCode}, fmt.Errorf("read response: %w", err)
	}

	result := SendResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}
	var decoded map[string]any
	if json.Unmarshal(raw, &decoded) == nil {
		result.Body = decoded
	} else if len(raw) > 0 {
		result.Body = map[string]any{"raw": string(raw)}
	}
	return result, nil
}
