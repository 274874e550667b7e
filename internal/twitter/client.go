package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/olegsv/twmentions/pkg/models"
)

// Client is a Twitter API v2 client bound to one account's credentials
type Client struct {
	baseURL    string
	creds      models.Credentials
	logger     *slog.Logger
	httpClient *http.Client
}

// Config for the Twitter client
type Config struct {
	BaseURL     string // e.g., https://api.twitter.com
	Credentials models.Credentials
	Timeout     time.Duration
}

// User is the authenticated account's own platform identity
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// MentionPage is one page of mentions plus the newest-id marker reported by
// the platform. Order is the platform's, preserved as returned.
type MentionPage struct {
	Mentions []models.Mention
	NewestID string
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type tweetObject struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

// NewClient creates a new Twitter client from a credential bundle
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		creds:   cfg.Credentials,
		logger:  logger.With("component", "twitter"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetMe resolves the authenticated account's own user record
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var resp struct {
		Data *User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/2/users/me", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("empty user in response")
	}
	return resp.Data, nil
}

// GetMentions returns mentions of the given user newer than sinceID, bounded
// to tweets created after startTime. An empty page with no error means no new
// mentions. NewestID is empty when the platform omits the meta block.
func (c *Client) GetMentions(ctx context.Context, userID, sinceID string, startTime time.Time, maxResults int) (*MentionPage, error) {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("start_time", startTime.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	params.Set("tweet.fields", "created_at,author_id,text")
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}

	var resp struct {
		Data []tweetObject `json:"data"`
		Meta *struct {
			NewestID    string `json:"newest_id"`
			ResultCount int    `json:"result_count"`
		} `json:"meta"`
	}
	path := fmt.Sprintf("/2/users/%s/mentions?%s", userID, params.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	page := &MentionPage{}
	for _, t := range resp.Data {
		createdAt, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err != nil {
			// Keep the mention; a zero timestamp is better than losing it
			c.logger.Warn("failed to parse mention timestamp", "tweet_id", t.ID, "created_at", t.CreatedAt)
		}
		page.Mentions = append(page.Mentions, models.Mention{
			ID:        t.ID,
			AuthorID:  t.AuthorID,
			Text:      t.Text,
			CreatedAt: createdAt,
		})
	}
	if resp.Meta != nil {
		page.NewestID = resp.Meta.NewestID
	}
	return page, nil
}

// PostReply posts text as a reply to the given tweet
func (c *Client) PostReply(ctx context.Context, text, inReplyToID string) error {
	body := map[string]any{
		"text": text,
		"reply": map[string]string{
			"in_reply_to_tweet_id": inReplyToID,
		},
	}
	return c.do(ctx, http.MethodPost, "/2/tweets", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.BearerToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Title != "" {
			return fmt.Errorf("twitter API error: %s: %s (status %d)", apiErr.Title, apiErr.Detail, resp.StatusCode)
		}
		return fmt.Errorf("twitter API error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
