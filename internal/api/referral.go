package api

import (
	"context"
	"net/url"
)

func (c *Client) GetReferralStats(ctx context.Context) (*ReferralStats, error) {
	var r ReferralStats
	if err := c.get(ctx, "/api/referral/stats", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetReferralLink(ctx context.Context) (*ReferralLink, error) {
	var r ReferralLink
	if err := c.get(ctx, "/api/referral/link", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type MessageResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) ApplyReferralCode(ctx context.Context, code string) (*MessageResult, error) {
	var r MessageResult
	if err := c.post(ctx, "/api/referral/apply", map[string]string{"code": code}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ApplyPromoCode(ctx context.Context, code string) (*PromoApplyResult, error) {
	var r PromoApplyResult
	if err := c.post(ctx, "/api/promo/apply", map[string]string{"code": code}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ValidatePromoCode(ctx context.Context, code string) (*PromoValidation, error) {
	var r PromoValidation
	if err := c.get(ctx, "/api/promo/validate", url.Values{"code": {code}}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
