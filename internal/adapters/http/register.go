package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
)

const registerEndpoint = "/register_device"

type registration struct {
	DeviceID string `json:"device_id"`
	Type     string `json:"type"`
}

// Register announces the device to the collector. The response body is not
// parsed; any 2xx status counts as success.
func (s *Session) Register(ctx context.Context, deviceID string) error {
	body, err := json.Marshal(registration{DeviceID: deviceID, Type: s.cfg.DeviceType})
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RegisterTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+registerEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Frameship-OSArch", runtime.GOOS+"/"+runtime.GOARCH)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send registration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}
