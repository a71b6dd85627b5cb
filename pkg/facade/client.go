package facade

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

// Client calls a Facade over HTTP and unwraps its result envelope.
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

// Health returns the mediator probe relayed by /coral/health.
func (c *Client) Health(ctx context.Context) (types.HealthResponse, error) {
	var response CoralHealthResponse
	if err := c.endpoint.Get(ctx, PathCoralHealth, nil, &response); err != nil {
		return types.HealthResponse{}, err
	}

	return response.CoralService, nil
}

func (c *Client) RegisterAgent(ctx context.Context, req types.RegisterAgentRequest) (types.RegisterAgentResponse, error) {
	var response Result[types.RegisterAgentResponse]
	err := c.endpoint.Post(ctx, PathRegister, req, &response)
	return response.Result, err
}

func (c *Client) SendMessage(ctx context.Context, req types.SendMessageRequest) (types.SendMessageResponse, error) {
	var response Result[types.SendMessageResponse]
	err := c.endpoint.Post(ctx, PathSendMessage, req, &response)
	return response.Result, err
}

func (c *Client) ListAgents(ctx context.Context, includeDetails bool) (types.ListAgentsResponse, error) {
	query := url.Values{"include_details": []string{strconv.FormatBool(includeDetails)}}

	var response Result[types.ListAgentsResponse]
	err := c.endpoint.Get(ctx, PathListAgents, query, &response)
	return response.Result, err
}

func (c *Client) CreateThread(ctx context.Context, req types.CreateThreadRequest) (types.CreateThreadResponse, error) {
	var response Result[types.CreateThreadResponse]
	err := c.endpoint.Post(ctx, PathCreateThread, req, &response)
	return response.Result, err
}
