/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
)

// Client talks to the element API served by Handler. It satisfies domain.ElementStore.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
// A zero timeout selects 10s.
func NewClient(baseURL string, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("server %s %s: %w", method, u.Path, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func elementPath(id string, suffix ...string) string {
	p := "/api/elements/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// IssueToken requests a bearer token for subject and stores it on the client.
func (c *Client) IssueToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	req := map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

func (c *Client) GetElement(ctx context.Context, id string) (domain.CanvasElement, error) {
	var el domain.CanvasElement
	if err := c.doJSON(ctx, http.MethodGet, elementPath(id), nil, &el); err != nil {
		return domain.CanvasElement{}, err
	}
	return el, nil
}

func (c *Client) SetElementPosition(ctx context.Context, id string, pos domain.CanvasPosition) error {
	return c.put(ctx, id, "position", pos)
}

func (c *Client) SetElementCrop(ctx context.Context, id string, crop domain.CropData) error {
	return c.put(ctx, id, "crop", crop)
}

func (c *Client) SetElementContent(ctx context.Context, id string, content string) error {
	return c.put(ctx, id, "content", contentBody{Content: content})
}

func (c *Client) put(ctx context.Context, id, field string, body any) error {
	err := c.doJSON(ctx, http.MethodPut, elementPath(id, field), body, nil)
	if err != nil {
		applog.WithOperation(applog.WithComponent("backend"), "put").Warn("element write failed",
			slog.String("element", id), slog.String("field", field), slog.Any("err", err))
	}
	return err
}

type contentBody struct {
	Content string `json:"content"`
}
