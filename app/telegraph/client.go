package telegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	authorName string
	authorURL  string
}

func NewClient(httpClient *http.Client, endpoint, token, authorName, authorURL string) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		token:      token,
		authorName: authorName,
		authorURL:  authorURL,
	}
}

type createPageRequest struct {
	Title      string `json:"title"`
	Content    []Node `json:"content"`
	AuthorName string `json:"author_name,omitempty"`
	AuthorURL  string `json:"author_url,omitempty"`
}

type createPageResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Result struct {
		URL  string `json:"url"`
		Path string `json:"path"`
	} `json:"result"`
}

// Publish creates a page from messaging markup and returns its URL.
func (c *Client) Publish(ctx context.Context, title, markup string) (string, error) {
	content := ToNodes(markup)
	if len(content) == 0 {
		return "", fmt.Errorf("no content to publish")
	}

	payload, err := json.Marshal(createPageRequest{
		Title:      title,
		Content:    content,
		AuthorName: c.authorName,
		AuthorURL:  c.authorURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal page: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var parsed createPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if !parsed.OK {
		return "", fmt.Errorf("page rejected: %s", parsed.Error)
	}

	return parsed.Result.URL, nil
}
