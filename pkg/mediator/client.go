package mediator

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

// Client calls a Mediator over HTTP. Failures come back as *relay.Error
// carrying the Mediator's own message and code; transport faults are
// tagged unreachable.
type Client struct {
	endpoint *relay.Endpoint
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	endpoint, err := relay.NewEndpoint(baseURL, timeout, nil)
	if err != nil {
		return nil, err
	}

	return &Client{endpoint: endpoint}, nil
}

func (c *Client) BaseURL() string {
	return c.endpoint.BaseURL()
}

func (c *Client) Health(ctx context.Context) (types.HealthResponse, error) {
	var response types.HealthResponse
	err := c.endpoint.Get(ctx, PathHealth, nil, &response)
	return response, err
}

func (c *Client) RegisterAgent(ctx context.Context, req types.RegisterAgentRequest) (types.RegisterAgentResponse, error) {
	var response types.RegisterAgentResponse
	err := c.endpoint.Post(ctx, PathRegisterAgent, req, &response)
	return response, err
}

func (c *Client) SendMessage(ctx context.Context, req types.SendMessageRequest) (types.SendMessageResponse, error) {
	var response types.SendMessageResponse
	err := c.endpoint.Post(ctx, PathSendMessage, req, &response)
	return response, err
}

func (c *Client) ListAgents(ctx context.Context, includeDetails bool) (types.ListAgentsResponse, error) {
	query := url.Values{"include_details": []string{strconv.FormatBool(includeDetails)}}

	var response types.ListAgentsResponse
	err := c.endpoint.Get(ctx, PathListAgents, query, &response)
	return response, err
}

func (c *Client) CreateThread(ctx context.Context, req types.CreateThreadRequest) (types.CreateThreadResponse, error) {
	var response types.CreateThreadResponse
	err := c.endpoint.Post(ctx, PathCreateThread, req, &response)
	return response, err
}
