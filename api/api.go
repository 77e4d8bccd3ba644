// Package api provides a Go client for the gridllm coordinator HTTP API.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Config is used to configure the creation of a client
type Config struct {
	// Address is the address of the coordinator
	Address string

	// UserID is sent as the authenticated user identity on user-scoped
	// calls. The deployment's auth proxy normally injects it; setting it
	// here is for direct access.
	UserID string

	// HTTPClient is the client to use. Default will be used if not provided.
	HTTPClient *http.Client
}

// DefaultConfig returns a default configuration for the client, checking
// the GRIDLLM_ADDR environment variable.
func DefaultConfig() *Config {
	config := &Config{
		Address:    "http://127.0.0.1:8420",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	if addr := os.Getenv("GRIDLLM_ADDR"); addr != "" {
		config.Address = addr
	}
	return config
}

// Client provides a client to the coordinator API
type Client struct {
	config Config
}

// NewClient returns a new client
func NewClient(config *Config) (*Client, error) {
	defConfig := DefaultConfig()
	if config.Address == "" {
		config.Address = defConfig.Address
	} else if _, err := url.Parse(config.Address); err != nil {
		return nil, fmt.Errorf("invalid address '%s': %w", config.Address, err)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = defConfig.HTTPClient
	}
	return &Client{config: *config}, nil
}

// APIError is returned for any non-2xx response, carrying the server's
// error message and status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected response code %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequest(method, c.config.Address+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserID != "" {
		req.Header.Set("X-GridLLM-User", c.config.UserID)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			apiErr.Message = errBody.Error
		}
		return apiErr
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) get(path string, out interface{}) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *Client) post(path string, in, out interface{}) error {
	return c.do(http.MethodPost, path, in, out)
}

func (c *Client) put(path string, in, out interface{}) error {
	return c.do(http.MethodPut, path, in, out)
}
