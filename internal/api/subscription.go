package api

import (
	"context"
	"github.com/google/uuid"
)

type BuyResult struct {
	Payment Payment         `json:"payment"`
	TONInfo *TONPaymentInfo `json:"ton_info,omitempty"`
}

type buyRequest struct {
	PlanID   string   `json:"plan_id"`
	ServerID *string  `json:"server_id,omitempty"`
	Provider Provider `json:"provider"`
}

// BuySubscription создаёт платёж за тариф (ton или stars).
// serverID - необязательный выбранный сервер.
func (c *Client) BuySubscription(ctx context.Context, planID uuid.UUID, provider Provider, serverID *uuid.UUID) (*BuyResult, error) {
	req := buyRequest{PlanID: planID.String(), Provider: provider}
	if serverID != nil {
		s := serverID.String()
		req.ServerID = &s
	}
	var r BuyResult
	if err := c.post(ctx, "/api/subscription/buy", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetSubscriptionKey(ctx context.Context) (string, error) {
	var r struct {
		Key string `json:"key"`
	}
	if err := c.get(ctx, "/api/subscription/key", nil, &r); err != nil {
		return "", err
	}
	return r.Key, nil
}

func (c *Client) GetSubscriptionStatus(ctx context.Context) (*SubscriptionStatus, error) {
	var s SubscriptionStatus
	if err := c.get(ctx, "/api/subscription/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

type TrialResult struct {
	Success      bool          `json:"success"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Key          string        `json:"key"`
}

func (c *Client) ActivateTrial(ctx context.Context) (*TrialResult, error) {
	var r TrialResult
	if err := c.post(ctx, "/api/subscription/trial", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetSwitchServerInfo(ctx context.Context) (SwitchInfo, error) {
	var r SwitchInfo
	err := c.get(ctx, "/api/subscription/switch-server/info", nil, &r)
	return r, err
}

// SwitchServer переносит активную подписку на другой сервер.
// 402 означает, что бесплатных смен нет и баланса не хватает.
func (c *Client) SwitchServer(ctx context.Context, serverID uuid.UUID) (*SwitchResult, error) {
	var r SwitchResult
	body := map[string]string{"server_id": serverID.String()}
	if err := c.post(ctx, "/api/subscription/switch-server", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
