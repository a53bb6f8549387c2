package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// apiClient returns an http.Client that connects over the Unix socket.
func apiClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
			},
		},
	}
}

// apiGet performs a GET and decodes the JSON response.
func apiGet(path string, dest any) error {
	resp, err := apiClient().Get("http://fluxdnad" + path)
	if err != nil {
		return fmt.Errorf("cannot connect to fluxdnad at %s: %w", socketPath, err)
	}
	defer resp.Body.Close()
	return decode(resp, dest)
}

// apiPost performs a POST with an optional JSON body and decodes the JSON
// response.
func apiPost(path string, body, dest any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	resp, err := apiClient().Post("http://fluxdnad"+path, "application/json", r)
	if err != nil {
		return fmt.Errorf("cannot connect to fluxdnad at %s: %w", socketPath, err)
	}
	defer resp.Body.Close()
	return decode(resp, dest)
}

func decode(resp *http.Response, dest any) error {
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if text := strings.TrimSpace(string(msg)); text != "" {
			return fmt.Errorf("fluxdnad returned HTTP %d: %s", resp.StatusCode, text)
		}
		return fmt.Errorf("fluxdnad returned HTTP %d", resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
