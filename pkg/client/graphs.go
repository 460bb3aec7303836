package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/queryweaver/qw/pkg/models"
)

// unary responses are small JSON documents, schemas being the largest
const maxUnaryBody = 8 << 20

// APIError is a non-success reply to a unary operation, with the
// human-readable message extracted from whichever field the server used.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server replied %v: %v", e.StatusCode, e.Message)
}

// ListGraphs returns the names of every graph available to the caller.
func (c *Client) ListGraphs(ctx context.Context) ([]string, error) {
	var graphs []string
	err := c.doJSON(ctx, http.MethodGet, "/graphs", nil, &graphs)
	return graphs, err
}

// GetSchema returns the node/edge view of one graph's schema.
func (c *Client) GetSchema(ctx context.Context, graphID string) (models.Schema, error) {
	var schema models.Schema
	if err := validateGraphID(graphID); err != nil {
		return schema, err
	}
	err := c.doJSON(ctx, http.MethodGet, "/graphs/"+url.PathEscape(graphID)+"/data", nil, &schema)
	return schema, err
}

// RefreshSchema makes the server re-read the schema from the underlying
// database, for when the graph is suspected to be out of sync.
func (c *Client) RefreshSchema(ctx context.Context, graphID string) error {
	if err := validateGraphID(graphID); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/graphs/"+url.PathEscape(graphID)+"/refresh", nil, nil)
}

// DeleteGraph removes the graph from the server.
func (c *Client) DeleteGraph(ctx context.Context, graphID string) error {
	if err := validateGraphID(graphID); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/graphs/"+url.PathEscape(graphID), nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, into any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, body != nil)

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, maxUnaryBody))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{
			StatusCode: res.StatusCode,
			Message:    models.ExtractErrorMessage(data, res.Status),
		}
	}
	if into == nil {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
