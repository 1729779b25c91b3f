package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client sends commands to a Home Assistant instance.
//
// The relay holds no door state of its own: the open command is forwarded
// to the controller owning the physical actuator and the controller's
// response is the only confirmation.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a controller client. baseURL is the Home Assistant root
// without a trailing slash, token a long-lived access token.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// servicePath maps an entity's domain to the service call that opens it.
// Switches and helper booleans turn on; locks unlock.
func servicePath(entityID string) (string, error) {
	domain, _, ok := strings.Cut(entityID, ".")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEntity, entityID)
	}
	switch domain {
	case "switch", "input_boolean":
		return "/api/services/" + domain + "/turn_on", nil
	case "lock":
		return "/api/services/lock/unlock", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEntity, entityID)
	}
}

// TriggerOpen commands the entity open via its domain's service call.
func (c *Client) TriggerOpen(ctx context.Context, entityID string) error {
	path, err := servicePath(entityID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"entity_id": entityID})
	if err != nil {
		return fmt.Errorf("encoding service payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building service request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling controller: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("controller rejected open command",
			"entity", entityID, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrCommandRejected, resp.StatusCode)
	}

	return nil
}

// SensorState fetches an entity's current state string, such as a battery
// percentage. An empty string with nil error means the controller answered
// but the entity is unknown.
func (c *Client) SensorState(ctx context.Context, entityID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/states/"+entityID, nil)
	if err != nil {
		return "", fmt.Errorf("building state request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling controller: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrCommandRejected, resp.StatusCode)
	}

	var state struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return "", fmt.Errorf("decoding state response: %w", err)
	}
	return state.State, nil
}

// drainAndClose consumes the body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, body) //nolint:errcheck // best effort drain
	body.Close()              //nolint:errcheck // nothing to do on close failure
}
