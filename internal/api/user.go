package api

import (
	"context"
	"net/http"
)

// GetRates - публичный эндпоинт, без init data
func (c *Client) GetRates(ctx context.Context) (ExchangeRates, error) {
	var r ExchangeRates
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/rates", public: true}, &r)
	return r, err
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/api/user/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetPlans(ctx context.Context) ([]Plan, error) {
	var resp struct {
		Plans []Plan `json:"plans"`
	}
	if err := c.get(ctx, "/api/plans", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Plans, nil
}

func (c *Client) GetServers(ctx context.Context) ([]Server, error) {
	var resp struct {
		Servers []Server `json:"servers"`
	}
	if err := c.get(ctx, "/api/servers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Servers, nil
}
