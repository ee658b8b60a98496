package api

import (
	"context"
	"github.com/google/uuid"
)

func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	var r struct {
		Balance  float64 `json:"balance"`
		Currency string  `json:"currency"`
	}
	if err := c.get(ctx, "/api/balance", nil, &r); err != nil {
		return 0, err
	}
	return r.Balance, nil
}

func (c *Client) GetBalanceTransactions(ctx context.Context, limit, offset int) ([]BalanceTransaction, error) {
	var r struct {
		Transactions []BalanceTransaction `json:"transactions"`
	}
	if err := c.get(ctx, "/api/balance/transactions", pageQuery(limit, offset), &r); err != nil {
		return nil, err
	}
	return r.Transactions, nil
}

type BalancePayResult struct {
	Success    bool    `json:"success"`
	NewBalance float64 `json:"new_balance"`
	Key        string  `json:"key"`
}

func (c *Client) PayFromBalance(ctx context.Context, planID uuid.UUID) (*BalancePayResult, error) {
	var r BalancePayResult
	if err := c.post(ctx, "/api/balance/pay", map[string]string{"plan_id": planID.String()}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type TopUpIntent struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Provider  Provider  `json:"provider"`
}

type topUpRequest struct {
	Amount   float64  `json:"amount"`
	Provider Provider `json:"provider"`
}

func (c *Client) InitTopUp(ctx context.Context, amount float64, provider Provider) (*TopUpIntent, error) {
	var r TopUpIntent
	if err := c.post(ctx, "/api/balance/topup", topUpRequest{Amount: amount, Provider: provider}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetTopUpTONInfo(ctx context.Context, paymentID uuid.UUID) (*TONPaymentInfo, error) {
	var r TONPaymentInfo
	if err := c.get(ctx, "/api/balance/topup/ton", paymentQuery(paymentID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) InitTopUpStars(ctx context.Context, paymentID uuid.UUID) (*StarsInvoice, error) {
	var r StarsInvoice
	if err := c.get(ctx, "/api/balance/topup/stars", paymentQuery(paymentID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) VerifyTopUp(ctx context.Context, paymentID uuid.UUID, receipt string) (*VerifyResult, error) {
	var r VerifyResult
	if err := c.post(ctx, "/api/balance/topup/verify", verifyRequest{PaymentID: paymentID.String(), TxHash: receipt}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
