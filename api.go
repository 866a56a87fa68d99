package bonkbot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Safizapi/bonk-bot/logging"
)

const (
	defaultAPIBaseURL = "https://bonk2.io/scripts"
	playerCountURL    = "https://bonk2.io/scripts/combinedplayercount.txt"

	loginPath       = "/login_legacy.php"
	roomsPath       = "/getrooms.php"
	roomAddressPath = "/autojoin.php"
	mapSearchPath   = "/map_get.php"
	legacyMapPath   = "/map_get1.php"
	ownMapsPath     = "/map_getown.php"
	favMapsPath     = "/map_getfav.php"
	mapDeletePath   = "/map_delete.php"
	friendsPath     = "/friends.php"
)

// APIError is an error token returned by the account API.
type APIError struct {
	Endpoint string
	Token    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s: %s", e.Endpoint, e.Token)
}

// apiClient speaks the account API: form-encoded POSTs answered with
// JSON, errors signalled by an "e" token in the body.
type apiClient struct {
	base   string
	client *http.Client
	log    zerolog.Logger
}

func newAPIClient(base string) *apiClient {
	if base == "" {
		base = defaultAPIBaseURL
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		log: logging.Component("api"),
	}
}

// postForm sends one form POST and decodes the JSON reply into out.
// A top-level "e" token in the reply is returned as an *APIError.
func (c *apiClient) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	var probe struct {
		E string `json:"e"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.E != "" {
		return &APIError{Endpoint: path, Token: probe.E}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}

// getText fetches a plain URL and returns the body.
func (c *apiClient) getText(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", rawURL, resp.StatusCode)
	}
	return body, nil
}

// loginResponse is the reply to a successful account login.
type loginResponse struct {
	Token              string `json:"token"`
	ID                 int    `json:"id"`
	Username           string `json:"username"`
	XP                 int    `json:"xp"`
	Avatar1            string `json:"avatar1"`
	Avatar2            string `json:"avatar2"`
	Avatar3            string `json:"avatar3"`
	Avatar4            string `json:"avatar4"`
	Avatar5            string `json:"avatar5"`
	ActiveAvatarNumber int    `json:"activeAvatarNumber"`
	LegacyFriends      string `json:"legacyFriends"`
}

func (c *apiClient) login(ctx context.Context, username, password string) (*loginResponse, error) {
	form := url.Values{
		"username": {username},
		"password": {password},
		"remember": {"false"},
	}
	var out loginResponse
	if err := c.postForm(ctx, loginPath, form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// roomAddress resolves the join address of a listed room.
func (c *apiClient) roomAddress(ctx context.Context, roomID int) (address, server string, err error) {
	form := url.Values{"id": {strconv.Itoa(roomID)}}
	var out struct {
		Address string `json:"address"`
		Server  string `json:"server"`
	}
	if err := c.postForm(ctx, roomAddressPath, form, &out); err != nil {
		return "", "", err
	}
	return out.Address, out.Server, nil
}

func (c *apiClient) friendsTask(ctx context.Context, token string, extra url.Values, out interface{}) error {
	form := url.Values{"token": {token}}
	for k, vs := range extra {
		form[k] = vs
	}
	return c.postForm(ctx, friendsPath, form, out)
}
