package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/models"
	"social-autoreply-platform/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrMissingToken = errors.New("instagram access token is empty")

// APIError is a non-2xx Graph API response.
type APIError struct {
	StatusCode int
	Body       string
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph api status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api status %d: %s", e.StatusCode, e.Body)
}

type graphErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Client calls the Instagram Graph API. It holds no credentials; every call
// takes the tenant's access token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ReplyToComment posts message as a reply to commentID. It makes exactly one
// request; callers own deduplication.
func (c *Client) ReplyToComment(ctx context.Context, commentID, message, accessToken string) error {
	ctx, span := otel.Tracer("instagram-client").Start(ctx, "instagram.reply_to_comment")
	defer span.End()
	span.SetAttributes(attribute.String("instagram.comment_id", commentID))

	if accessToken == "" {
		span.SetStatus(codes.Error, ErrMissingToken.Error())
		return ErrMissingToken
	}

	params := url.Values{}
	params.Set("message", message)
	params.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s/replies?%s", c.baseURL, url.PathEscape(commentID), params.Encode())

	logger.Debug("Posting comment reply",
		"comment_id", commentID,
		"access_token", utils.RedactToken(accessToken),
		"message", truncate(message, 200),
	)

	if err := c.do(ctx, http.MethodPost, endpoint, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

type mediaPage struct {
	Data []models.Media `json:"data"`
}

// ListMedia returns the account's most recent media items.
func (c *Client) ListMedia(ctx context.Context, accessToken string, limit int) ([]models.Media, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}
	if limit <= 0 {
		limit = 12
	}

	params := url.Values{}
	params.Set("fields", "id,caption,media_type,media_url,permalink,timestamp")
	params.Set("limit", fmt.Sprint(limit))
	params.Set("access_token", accessToken)

	var page mediaPage
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/me/media?"+params.Encode(), &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// RefreshedToken is the response of the long-lived token refresh endpoint.
type RefreshedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExpiresAt converts ExpiresIn to an absolute time relative to now.
func (t RefreshedToken) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &at
}

// RefreshToken extends a long-lived access token.
func (c *Client) RefreshToken(ctx context.Context, accessToken string) (*RefreshedToken, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", accessToken)

	var out RefreshedToken
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/refresh_access_token?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("refresh response carried no access token")
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Request errors embed the URL, which carries the token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("graph api %s request failed: %w", method, uerr.Err)
		}
		return fmt.Errorf("graph api %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		var ge graphErrorBody
		if json.Unmarshal(body, &ge) == nil {
			apiErr.Code = ge.Error.Code
			apiErr.Message = ge.Error.Message
		}
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
