package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-sales-agent-be/internal/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
)

const module = "PROFILE"

// RandomUserID asks the profile service for any customer.
const RandomUserID = "random"

var (
	ErrNotFound    = errors.New("profile: user not found")
	ErrUnavailable = errors.New("profile: service unavailable")
)

// Fetcher returns a customer profile by id, or a random one for RandomUserID.
type Fetcher interface {
	Fetch(ctx context.Context, userID string) (*Profile, error)
}

// Client talks to the CRM profile service and caches answers briefly.
type Client struct {
	http   *resty.Client
	cache  *cache.Cache
	logger logger.ILogger
}

var _ Fetcher = &Client{}

func NewClient(baseURL string, timeout, cacheTTL time.Duration, log logger.ILogger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second)
	httpClient.AddRetryCondition(retryCondition)

	return &Client{
		http:   httpClient,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		logger: log,
	}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) Fetch(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if userID != RandomUserID {
		if x, found := c.cache.Get(userID); found {
			return x.(*Profile), nil
		}
	}

	path := "/user/id/{id}"
	req := c.http.R().SetContext(ctx)
	if userID == RandomUserID {
		path = "/user/random"
	} else {
		req.SetPathParam("id", userID)
	}

	var p Profile
	resp, err := req.SetResult(&p).Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode(), resp.String())
	}
	if p.UserID == "" {
		if userID == RandomUserID {
			return nil, fmt.Errorf("profile service returned a user without id")
		}
		p.UserID = userID
	}

	p.Derive()
	c.cache.SetDefault(p.UserID, &p)

	c.logger.Debug(module, "Profile fetched", map[string]interface{}{
		"user_id":  p.UserID,
		"decision": p.Decision,
	})
	return &p, nil
}
