package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"roulette/pkg/types/matchtype"
)

// HTTPProfileClient fetches matching profiles from the user service over
// plain HTTP. The user id travels in the X-User-ID header, same as every
// internal call behind the gateway.
type HTTPProfileClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProfileClient(baseURL string) *HTTPProfileClient {
	return &HTTPProfileClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPProfileClient) GetProfile(ctx context.Context, userID int64) (*matchtype.MatchProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/match/profile", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	var profile matchtype.MatchProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	return &profile, nil
}

func (c *HTTPProfileClient) SetSearching(ctx context.Context, userID int64, searching bool) error {
	payload, err := json.Marshal(map[string]bool{"searching": searching})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/match/searching", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
