// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package remote implements cache.Cache against the project cache service.
//
// Every project owns one endpoint, {host}/api/gpt/{project}/embed:
//
//	POST    store one {id, text, embedding} entry
//	PUT     replace the project's entries with {chunks: [...]}
//	DELETE  drop the project's entries
//
// The service answers {success, message}. A conflicting ID is reported with
// status 409.
package remote

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

	"github.com/poiesic/chunkpipe/cache"
)

// DefaultHost is the cache service address used when none is configured.
const DefaultHost = "http://localhost:4000"

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type replaceRequest struct {
	Chunks []cache.Entry `json:"chunks"`
}

// Client talks to the cache service over HTTP.
type Client struct {
	host   string
	client *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.With("component", "remote-cache")
		}
	}
}

// NewClient creates a client for the service at host.
// An empty host selects DefaultHost.
func NewClient(host string, opts ...Option) *Client {
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		host = DefaultHost
	}
	c := &Client{
		host:   host,
		client: &http.Client{},
		logger: slog.Default().With("component", "remote-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ cache.Cache = (*Client)(nil)

func (c *Client) endpoint(project string) string {
	return c.host + "/api/gpt/" + url.PathEscape(project) + "/embed"
}

// Put stores one entry.
func (c *Client) Put(ctx context.Context, project string, entry cache.Entry) error {
	if project == "" {
		return cache.ErrProjectRequired
	}
	if err := cache.ValidateEntry(entry); err != nil {
		return err
	}
	c.logger.Debug("pushing chunk", "project", project, "id", entry.ID)
	return c.do(ctx, http.MethodPost, project, entry)
}

// Replace swaps the project's entries for entries in one request.
func (c *Client) Replace(ctx context.Context, project string, entries []cache.Entry) error {
	if project == "" {
		return cache.ErrProjectRequired
	}
	for _, entry := range entries {
		if err := cache.ValidateEntry(entry); err != nil {
			return fmt.Errorf("invalid entry %q: %w", entry.ID, err)
		}
	}
	if entries == nil {
		entries = []cache.Entry{}
	}
	c.logger.Debug("replacing cache", "project", project, "count", len(entries))
	return c.do(ctx, http.MethodPut, project, replaceRequest{Chunks: entries})
}

// Clear drops the project's entries.
func (c *Client) Clear(ctx context.Context, project string) error {
	if project == "" {
		return cache.ErrProjectRequired
	}
	c.logger.Debug("clearing cache", "project", project)
	return c.do(ctx, http.MethodDelete, project, nil)
}

func (c *Client) do(ctx context.Context, method, project string, payload any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode cache request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(project), body)
	if err != nil {
		return fmt.Errorf("failed to create cache request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("cache request failed", "method", method, "err", err)
		return fmt.Errorf("failed to reach cache service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read cache response: %w", err)
	}

	var out response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 || (decodeErr == nil && !out.Success) {
		message := out.Message
		if decodeErr != nil {
			message = strings.TrimSpace(string(raw))
		}
		c.logger.Warn("cache service rejected request", "method", method, "status", resp.StatusCode, "message", message)
		return &cache.ServiceError{StatusCode: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode cache response: %w", decodeErr)
	}
	return nil
}
