package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"authgate/internal/util"
)

// invalidLoginCode is the error code the data platform returns for a bad
// username/password pair, as opposed to transport or server faults.
const invalidLoginCode = 101

// PlatformClient authenticates against the external data-platform login
// endpoint. All storage, user records, and session issuance live there; this
// client only translates its responses into the tri-state contract.
type PlatformClient struct {
	baseURL    string
	appID      string
	sessionTTL time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPlatformClient(baseURL, appID string, sessionTTL time.Duration, logger *zap.Logger) *PlatformClient {
	return &PlatformClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		sessionTTL: sessionTTL,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type platformLoginResponse struct {
	ObjectID     string `json:"objectId"`
	SessionToken string `json:"sessionToken"`
	Code         int    `json:"code"`
	Error        string `json:"error"`
}

func (c *PlatformClient) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	body, err := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode login request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build login request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.appID != "" {
		req.Header.Set("X-Application-Id", c.appID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Covers timeouts and connection failures; neither says anything
		// about the credentials.
		return nil, fmt.Errorf("%w: login request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var decoded platformLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: failed to decode login response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK && decoded.SessionToken != "":
		return &Session{
			Token:     decoded.SessionToken,
			UserID:    decoded.ObjectID,
			ExpiresAt: time.Now().Add(c.sessionTTL),
		}, nil

	case decoded.Code == invalidLoginCode:
		return nil, ErrInvalidCredentials

	default:
		c.logger.Warn("unexpected platform login response",
			util.Int("status", resp.StatusCode),
			util.Int("code", decoded.Code),
		)
		return nil, fmt.Errorf("%w: platform returned status %d code %d",
			ErrUnavailable, resp.StatusCode, decoded.Code)
	}
}
