package enrollment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hastexo/webhook-receiver/core"
)

const (
	defaultRequestTimeout    = 30 * time.Second
	maxResponseBodyBytes     = 1 << 20
	accessTokenPath          = "/oauth2/access_token"
	bulkEnrollPath           = "/api/bulk_enroll/v1/bulk_enroll/"
	tokenExpirySafetyWindow  = 30 * time.Second
	clientCredentialsGrant   = "client_credentials"
	jwtTokenTypeRequestValue = "jwt"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the LMS enrollment API client. LMSBaseURL hosts
// the OAuth token endpoint; APIBaseURL hosts the bulk enrollment endpoint.
type ClientConfig struct {
	LMSBaseURL     string
	APIBaseURL     string
	ClientID       string
	ClientSecret   string
	RequestTimeout time.Duration
	HTTPClient     HTTPDoer
	Now            func() time.Time
}

// Client enrolls learners through the bulk enrollment API, authenticating
// with OAuth2 client credentials. Access tokens are cached until shortly
// before expiry.
type Client struct {
	config     ClientConfig
	httpClient HTTPDoer
	logger     core.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg ClientConfig, logger core.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		config: ClientConfig{
			LMSBaseURL:     strings.TrimRight(strings.TrimSpace(cfg.LMSBaseURL), "/"),
			APIBaseURL:     strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"),
			ClientID:       strings.TrimSpace(cfg.ClientID),
			ClientSecret:   strings.TrimSpace(cfg.ClientSecret),
			RequestTimeout: timeout,
			Now:            now,
		},
		httpClient: httpClient,
		logger:     logger,
	}
}

// Enroll registers email into courseID. The email address is validated
// before any network call so that malformed vendor data fails fast.
func (c *Client) Enroll(ctx context.Context, courseID string, email string, opts core.EnrollOptions) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("enrollment: client is not configured")
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return fmt.Errorf("enrollment: course id is required")
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"auto_enroll":    opts.AutoEnroll,
		"email_students": opts.EmailStudents,
		"action":         "enroll",
		"courses":        courseID,
		"identifiers":    strings.TrimSpace(email),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("enrollment: encode request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	endpoint := c.config.APIBaseURL + bulkEnrollPath
	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("enrollment: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "JWT "+token)

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &APIError{Message: "enrollment request failed", Cause: err}
	}
	defer response.Body.Close()

	responseBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes))
	if readErr != nil {
		return &APIError{StatusCode: response.StatusCode, Message: "read enrollment response", Cause: readErr}
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return &APIError{
			StatusCode: response.StatusCode,
			Message:    fmt.Sprintf("enroll %s in %s", email, courseID),
			Body:       strings.TrimSpace(string(responseBody)),
		}
	}
	if c.logger != nil {
		c.logger.Debug("enrolled learner", "course_id", courseID)
	}
	return nil
}

func (c *Client) accessTokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Now()
	if c.accessToken != "" && now.Before(c.tokenExpiry.Add(-tokenExpirySafetyWindow)) {
		return c.accessToken, nil
	}

	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return "", fmt.Errorf("enrollment: oauth client id and secret are required")
	}

	values := url.Values{}
	values.Set("grant_type", clientCredentialsGrant)
	values.Set("client_id", c.config.ClientID)
	values.Set("client_secret", c.config.ClientSecret)
	values.Set("token_type", jwtTokenTypeRequestValue)

	requestCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	endpoint := c.config.LMSBaseURL + accessTokenPath
	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		endpoint,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("enrollment: build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &APIError{Message: "token request failed", Cause: err}
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes))
	if readErr != nil {
		return "", &APIError{StatusCode: response.StatusCode, Message: "read token response", Cause: readErr}
	}
	if response.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: response.StatusCode,
			Message:    "token request rejected",
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &APIError{StatusCode: response.StatusCode, Message: "decode token response", Cause: err}
	}
	token := strings.TrimSpace(parsed.AccessToken)
	if token == "" {
		return "", &APIError{StatusCode: response.StatusCode, Message: "token response missing access token"}
	}

	c.accessToken = token
	if parsed.ExpiresIn > 0 {
		c.tokenExpiry = now.Add(time.Duration(parsed.ExpiresIn) * time.Second)
	} else {
		c.tokenExpiry = now.Add(time.Hour)
	}
	return token, nil
}

// ValidateEmail rejects addresses the enrollment API would refuse. Display
// names are not accepted; the vendor payloads carry bare addresses.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return fmt.Errorf("enrollment: email is required")
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return fmt.Errorf("enrollment: invalid email %q: %w", trimmed, err)
	}
	if parsed.Address != trimmed {
		return fmt.Errorf("enrollment: invalid email %q", trimmed)
	}
	return nil
}

var _ core.Enroller = (*Client)(nil)
