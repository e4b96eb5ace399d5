package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/ports"
)

// TokenFunc supplies the current bearer credential, or "" when the
// caller is unauthenticated.
type TokenFunc func() string

// Client talks JSON-over-HTTP to the remote post service.
type Client struct {
	baseURL string
	apiKey  string
	token   TokenFunc
	http    *http.Client
}

var _ ports.PostLedger = (*Client)(nil)
var _ ports.AuthorDirectory = (*Client)(nil)

// NewClient creates a reusable HTTP client against baseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration, token TokenFunc) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type postPayload struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Author    string           `json:"author"`
	Votes     int64            `json:"votes"`
	Comments  []commentPayload `json:"comments"`
	CreatedAt int64            `json:"createdAt"`
	AIVerdict *domain.Verdict  `json:"aiVerdict,omitempty"`
}

type commentPayload struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
	Author  string `json:"author"`
}

type ackPayload struct {
	Success bool `json:"success"`
}

// ListPosts fetches the full feed; posts may carry embedded verdicts.
func (c *Client) ListPosts(ctx context.Context) ([]domain.Post, error) {
	var payload []postPayload
	if err := c.do(ctx, http.MethodGet, "/api/posts", nil, &payload); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]domain.Post, 0, len(payload))
	for _, p := range payload {
		posts = append(posts, p.toDomain())
	}
	return posts, nil
}

// CreatePost submits a new claim and returns the server-assigned post.
func (c *Client) CreatePost(ctx context.Context, title, content string) (domain.Post, error) {
	body := map[string]string{"title": title, "content": content}
	var payload postPayload
	if err := c.do(ctx, http.MethodPost, "/api/posts", body, &payload); err != nil {
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}
	return payload.toDomain(), nil
}

// AddComment appends a comment; id assignment is server-owned.
func (c *Client) AddComment(ctx context.Context, postID int64, content string) (bool, error) {
	body := map[string]string{"content": content}
	var ack ackPayload
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), body, &ack); err != nil {
		return false, fmt.Errorf("add comment: %w", err)
	}
	return ack.Success, nil
}

// CastVote sends a signed delta; the server keeps a running total, not a
// per-user overwrite.
func (c *Client) CastVote(ctx context.Context, postID int64, delta int64) (bool, error) {
	body := map[string]int64{"delta": delta}
	var ack ackPayload
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", postID), body, &ack); err != nil {
		return false, fmt.Errorf("cast vote: %w", err)
	}
	return ack.Success, nil
}

// UserVote returns the caller's last recorded vote for postID.
func (c *Client) UserVote(ctx context.Context, postID int64) (domain.VoteState, error) {
	var payload struct {
		Vote int `json:"vote"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d/vote", postID), nil, &payload); err != nil {
		return domain.VoteNone, fmt.Errorf("user vote: %w", err)
	}
	switch payload.Vote {
	case -1:
		return domain.VoteDown, nil
	case 1:
		return domain.VoteUp, nil
	default:
		return domain.VoteNone, nil
	}
}

// Verdict returns the stored verdict for postID, or nil when none exists.
func (c *Client) Verdict(ctx context.Context, postID int64) (*domain.Verdict, error) {
	var payload struct {
		Verdict *domain.Verdict `json:"verdict"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d/verdict", postID), nil, &payload); err != nil {
		return nil, fmt.Errorf("get verdict: %w", err)
	}
	return payload.Verdict, nil
}

// StoreVerdict records a freshly generated verdict on the ledger.
func (c *Client) StoreVerdict(ctx context.Context, postID int64, verdict domain.Verdict) (bool, error) {
	var ack ackPayload
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/posts/%d/verdict", postID), verdict, &ack); err != nil {
		return false, fmt.Errorf("store verdict: %w", err)
	}
	return ack.Success, nil
}

// UserInfo returns the display identity for a principal, or nil when the
// principal never registered one.
func (c *Client) UserInfo(ctx context.Context, principal domain.Principal) (*domain.AuthorInfo, error) {
	var payload struct {
		Alias    string `json:"alias"`
		AvatarID string `json:"avatarId"`
		Found    bool   `json:"found"`
	}
	path := "/api/users/" + url.PathEscape(string(principal))
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	if !payload.Found {
		return nil, nil
	}
	return &domain.AuthorInfo{Alias: payload.Alias, AvatarID: payload.AvatarID}, nil
}

// maxAvatarBytes bounds the avatar payload accepted by the ledger.
const maxAvatarBytes = 1000

// UpdateUserInfo stores the caller's alias and avatar, clamping the
// avatar to the ledger's size limit.
func (c *Client) UpdateUserInfo(ctx context.Context, alias, avatarID string) (bool, error) {
	if len(avatarID) > maxAvatarBytes {
		avatarID = avatarID[:maxAvatarBytes]
	}
	body := map[string]string{"alias": alias, "avatarId": avatarID}
	var ack ackPayload
	if err := c.do(ctx, http.MethodPut, "/api/users/me", body, &ack); err != nil {
		return false, fmt.Errorf("update user info: %w", err)
	}
	return ack.Success, nil
}

func (p postPayload) toDomain() domain.Post {
	comments := make([]domain.Comment, 0, len(p.Comments))
	for _, cm := range p.Comments {
		comments = append(comments, domain.Comment{
			ID:      cm.ID,
			Content: cm.Content,
			Author:  domain.Principal(cm.Author),
		})
	}
	return domain.Post{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    domain.Principal(p.Author),
		Votes:     p.Votes,
		Comments:  comments,
		CreatedAt: time.UnixMilli(p.CreatedAt),
		AIVerdict: p.AIVerdict,
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any, v any) error {
	var reader *bytes.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
