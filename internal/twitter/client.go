// Package twitter is a thin Twitter API v2 client covering just what
// the poller needs: the mentions timeline, replying with optional
// media, the v1.1 media upload, and the bot's own identity.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mikeshasaco/pokemonbot/internal/model"
	"github.com/mikeshasaco/pokemonbot/internal/poller"
)

const (
	apiBase    = "https://api.twitter.com"
	uploadBase = "https://upload.twitter.com"
)

// Identity is the authenticated bot account.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Client talks to the Twitter API with a bearer token.
type Client struct {
	http    *http.Client
	bearer  string
	userID  string
	api     string
	uploads string
}

// NewClient creates a client for the given bot account.
func NewClient(userID, bearerToken string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		bearer:  bearerToken,
		userID:  userID,
		api:     apiBase,
		uploads: uploadBase,
	}
}

type tweetObject struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type mentionsResponse struct {
	Data []tweetObject `json:"data"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

// FetchMentions returns new mentions of the bot account, newest first.
// A 429 surfaces as *poller.RateLimitError with the provider's reset
// time.
func (c *Client) FetchMentions(ctx context.Context, opts poller.FetchOptions) ([]model.Mention, error) {
	q := url.Values{}
	q.Set("tweet.fields", "author_id,created_at")
	if opts.MaxResults > 0 {
		q.Set("max_results", strconv.Itoa(opts.MaxResults))
	}
	if opts.SinceID != "" {
		q.Set("since_id", opts.SinceID)
	} else if !opts.StartTime.IsZero() {
		q.Set("start_time", opts.StartTime.UTC().Format(time.RFC3339))
	}

	endpoint := fmt.Sprintf("%s/2/users/%s/mentions?%s", c.api, c.userID, q.Encode())

	var resp mentionsResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	mentions := make([]model.Mention, 0, len(resp.Data))
	for _, t := range resp.Data {
		mentions = append(mentions, model.Mention{
			ID:        t.ID,
			AuthorID:  t.AuthorID,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
		})
	}
	return mentions, nil
}

type tweetRequest struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

// PostReply posts a reply tweet, optionally with uploaded media.
func (c *Client) PostReply(ctx context.Context, text, inReplyToID string, mediaIDs []string) error {
	body := tweetRequest{Text: text}
	if inReplyToID != "" {
		body.Reply = &struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		}{InReplyToTweetID: inReplyToID}
	}
	if len(mediaIDs) > 0 {
		body.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: mediaIDs}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

// UploadMedia uploads an image through the v1.1 media endpoint and
// returns its media id.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read media file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploads+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.MediaIDString, nil
}

// Me fetches the authenticated account, used as a startup self-check
// against the configured identity.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var resp struct {
		Data Identity `json:"data"`
	}
	if err := c.get(ctx, c.api+"/2/users/me", &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// do runs a request with auth and decodes the response, mapping 429s
// to the poller's rate-limit error.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &poller.RateLimitError{Reset: parseRateLimitReset(resp.Header)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twitter api error: %s: %s", resp.Status, body)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseRateLimitReset reads the provider's reset header, falling back
// to a minute from now when it is absent or malformed.
func parseRateLimitReset(h http.Header) time.Time {
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(secs, 0)
		}
	}
	return time.Now().Add(time.Minute)
}
