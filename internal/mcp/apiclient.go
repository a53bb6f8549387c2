package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

// DaemonAPI is the part of the fluxdnad control API the tools use.
// Implemented by APIClient; tests can provide a mock.
type DaemonAPI interface {
	GetStatus(ctx context.Context) (*protocol.StatusResponse, error)
	GetHooks(ctx context.Context, event string) (*protocol.HooksResponse, error)
	GetContent(ctx context.Context) (*protocol.ContentResponse, error)
	GetScripts(ctx context.Context) (*protocol.ScriptsResponse, error)
	Render(ctx context.Context, req protocol.RenderRequest) (*protocol.RenderResponse, error)
	SetActive(ctx context.Context, plugin string, active bool) (*protocol.ActivationResponse, error)
}

// APIClient talks to fluxdnad over its Unix socket HTTP API.
type APIClient struct {
	client *http.Client
}

// NewAPIClient creates an APIClient connected to the daemon's Unix socket.
func NewAPIClient(socketPath string) *APIClient {
	return &APIClient{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *APIClient) GetStatus(ctx context.Context) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) GetHooks(ctx context.Context, event string) (*protocol.HooksResponse, error) {
	path := "/api/v1/hooks"
	if event != "" {
		path += "?event=" + url.QueryEscape(event)
	}
	var resp protocol.HooksResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) GetContent(ctx context.Context) (*protocol.ContentResponse, error) {
	var resp protocol.ContentResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/content", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) GetScripts(ctx context.Context) (*protocol.ScriptsResponse, error) {
	var resp protocol.ScriptsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/scripts", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Render runs a page phase. A phase the daemon rejects comes back as a
// response with Error set rather than an error.
func (c *APIClient) Render(ctx context.Context, req protocol.RenderRequest) (*protocol.RenderResponse, error) {
	var resp protocol.RenderResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/render", req, &resp)
	if err != nil && resp.Error == "" {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) SetActive(ctx context.Context, plugin string, active bool) (*protocol.ActivationResponse, error) {
	action := "deactivate"
	if active {
		action = "activate"
	}
	var resp protocol.ActivationResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/plugins/"+url.PathEscape(plugin)+"/"+action, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends the request and decodes the JSON body into dst. On a non-200
// status dst is still decoded when the body is JSON.
func (c *APIClient) do(ctx context.Context, method, path string, body, dst any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://fluxdnad"+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			json.NewDecoder(resp.Body).Decode(dst)
		}
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
