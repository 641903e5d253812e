// Copyright 2023 Turing Machines
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

// Package robotest drives hardware-in-the-loop checks against a Wi-Fi robot
// controller: serial port selection, the boot READY handshake and HTTP
// smoke tests of the firmware endpoints.
package robotest

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"time"
)

// Client issues requests against the controller's HTTP server
type Client struct {
	Host       string
	Port       int
	httpClient *http.Client
	userAgent  string
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Body       string
}

// NewClient creates a new controller client with the provided options
func NewClient(options ...Option) (*Client, error) {
	// Default client options
	client := &Client{
		Port: DefaultHTTPPort,
		httpClient: &http.Client{
			Timeout: DefaultHTTPTimeout,
		},
		userAgent: fmt.Sprintf("robotest (%s;%s)", runtime.GOOS, runtime.Version()),
	}

	// Apply options
	for _, option := range options {
		option(client)
	}

	// Validate client configuration
	if client.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if client.Port <= 0 || client.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", client.Port)
	}

	return client, nil
}

// Option is a function that configures a Client
type Option func(*Client)

// WithHost sets the controller address
func WithHost(host string) Option {
	return func(c *Client) {
		c.Host = host
	}
}

// WithPort sets the controller's HTTP port
func WithPort(port int) Option {
	return func(c *Client) {
		c.Port = port
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its timeout is kept.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// BaseURL returns the controller root URL
func (c *Client) BaseURL() string {
	host := c.Host
	if c.Port != DefaultHTTPPort {
		host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	u := url.URL{Scheme: "http", Host: host, Path: "/"}
	return u.String()
}

// Get requests path with the given query and reads the whole body
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	u.Path = path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
