package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
	"github.com/hansduf/WA-Integrasi-sub000/pkg/api"
	"github.com/hansduf/WA-Integrasi-sub000/pkg/models"
)

// GatewayClient is the HTTP client for communicating with the waq gateway.
type GatewayClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewGatewayClient creates a new gateway client.
func NewGatewayClient(endpoint, token string) *GatewayClient {
	return &GatewayClient{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Endpoint returns the configured gateway endpoint.
func (c *GatewayClient) Endpoint() string {
	return c.endpoint
}

func (c *GatewayClient) requireEndpoint() error {
	if c.endpoint == "" {
		return errors.NewValidationMsg("no gateway endpoint configured")
	}
	return nil
}

// ListDataSources retrieves all data sources from the gateway.
func (c *GatewayClient) ListDataSources(ctx context.Context) ([]models.DataSourceInfo, error) {
	var result []models.DataSourceInfo
	if err := c.getJSON(ctx, api.EndpointDataSources, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetDataSource retrieves one data source.
func (c *GatewayClient) GetDataSource(ctx context.Context, id string) (*models.DataSourceInfo, error) {
	var result models.DataSourceInfo
	if err := c.getJSON(ctx, api.EndpointDataSources+"/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateDataSource registers a new data source.
func (c *GatewayClient) CreateDataSource(ctx context.Context, req models.DataSourceRequest) (*models.DataSourceInfo, error) {
	var result models.DataSourceInfo
	if err := c.postJSON(ctx, api.EndpointDataSources, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteDataSource removes a data source.
func (c *GatewayClient) DeleteDataSource(ctx context.Context, id string) error {
	if err := c.requireEndpoint(); err != nil {
		return err
	}
	resp, err := c.doRequest(ctx, "DELETE", api.EndpointDataSources+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// TestDataSource runs a connectivity probe against a data source.
func (c *GatewayClient) TestDataSource(ctx context.Context, id string) (*models.TestConnectionResponse, error) {
	var result models.TestConnectionResponse
	if err := c.postJSON(ctx, api.EndpointDataSources+"/"+url.PathEscape(id)+"/test", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DiscoverSchema retrieves the schema of a data source.
func (c *GatewayClient) DiscoverSchema(ctx context.Context, id string) (*models.SchemaResponse, error) {
	var result models.SchemaResponse
	if err := c.getJSON(ctx, api.EndpointDataSources+"/"+url.PathEscape(id)+"/schema", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExecuteQuery runs an ad hoc query against a data source.
func (c *GatewayClient) ExecuteQuery(ctx context.Context, id, query string) (*models.QueryResponse, error) {
	var result models.QueryResponse
	err := c.postJSON(ctx, api.EndpointDataSources+"/"+url.PathEscape(id)+"/query", models.QueryRequest{Query: query}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTriggers retrieves all triggers from the gateway.
func (c *GatewayClient) ListTriggers(ctx context.Context) ([]json.RawMessage, error) {
	var result []json.RawMessage
	if err := c.getJSON(ctx, api.EndpointTriggers, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateTrigger registers a new trigger.
func (c *GatewayClient) CreateTrigger(ctx context.Context, req models.TriggerRequest) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.postJSON(ctx, api.EndpointTriggers, req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteTriggerName removes one name from the trigger namespace.
func (c *GatewayClient) DeleteTriggerName(ctx context.Context, name string) error {
	if err := c.requireEndpoint(); err != nil {
		return err
	}
	resp, err := c.doRequest(ctx, "DELETE", api.EndpointTriggerNames+"/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// ListGroups retrieves all trigger groups.
func (c *GatewayClient) ListGroups(ctx context.Context) ([]json.RawMessage, error) {
	var result []json.RawMessage
	if err := c.getJSON(ctx, api.EndpointGroups, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateGroup registers a new trigger group.
func (c *GatewayClient) CreateGroup(ctx context.Context, req models.GroupRequest) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.postJSON(ctx, api.EndpointGroups, req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteGroup runs a trigger group.
func (c *GatewayClient) ExecuteGroup(ctx context.Context, id string) (*models.ExecutionResponse, error) {
	var result models.ExecutionResponse
	if err := c.postJSON(ctx, api.EndpointGroups+"/"+url.PathEscape(id)+"/execute", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Resolve matches message text without executing.
func (c *GatewayClient) Resolve(ctx context.Context, text string) (*models.ResolveResponse, error) {
	var result models.ResolveResponse
	if err := c.postJSON(ctx, api.EndpointResolve, models.ResolveRequest{Text: text}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MessageResult is the combined resolve-and-execute outcome.
type MessageResult struct {
	Matched  bool                      `json:"matched"`
	Response *models.ExecutionResponse `json:"response,omitempty"`
}

// SendMessage resolves and executes message text in one call.
func (c *GatewayClient) SendMessage(ctx context.Context, text string) (*MessageResult, error) {
	var result MessageResult
	if err := c.postJSON(ctx, api.EndpointMessage, models.ResolveRequest{Text: text}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckHealth verifies gateway connectivity.
func (c *GatewayClient) CheckHealth(ctx context.Context) (bool, error) {
	if err := c.requireEndpoint(); err != nil {
		return false, err
	}
	resp, err := c.doRequest(ctx, "GET", api.EndpointHealth, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// GetStatus retrieves gateway status and usage aggregates.
func (c *GatewayClient) GetStatus(ctx context.Context) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.getJSON(ctx, "/api/v1/status", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *GatewayClient) getJSON(ctx context.Context, path string, dst any) error {
	if err := c.requireEndpoint(); err != nil {
		return err
	}
	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *GatewayClient) postJSON(ctx context.Context, path string, payload, dst any) error {
	if err := c.requireEndpoint(); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	resp, err := c.doRequest(ctx, "POST", path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request to the gateway.
func (c *GatewayClient) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set(api.HeaderContentType, api.ContentTypeJSON)
	if c.token != "" {
		req.Header.Set(api.HeaderAuthorization, "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewBackendUnavailable("gateway", err)
	}

	return resp, nil
}

// parseErrorResponse parses an error response from the gateway.
func (c *GatewayClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("gateway error: %d - %s", resp.StatusCode, string(body))
	}

	if errResp.Reason != "" {
		return fmt.Errorf("%s: %s", errResp.Error, errResp.Reason)
	}
	return fmt.Errorf("%s", errResp.Error)
}
