package api

import (
	"context"
	"github.com/google/uuid"
	"net/url"
)

func paymentQuery(id uuid.UUID) url.Values {
	return url.Values{"payment_id": {id.String()}}
}

func (c *Client) InitTONPayment(ctx context.Context, paymentID uuid.UUID) (*TONPaymentInfo, error) {
	var r TONPaymentInfo
	if err := c.get(ctx, "/api/payment/ton/init", paymentQuery(paymentID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type verifyRequest struct {
	PaymentID string `json:"payment_id"`
	TxHash    string `json:"tx_hash"`
}

type VerifyResult struct {
	Success    bool     `json:"success"`
	Key        string   `json:"key,omitempty"`
	NewBalance *float64 `json:"new_balance,omitempty"`
}

// VerifyTONPayment передаёт серверу квитанцию кошелька для сверки перевода
func (c *Client) VerifyTONPayment(ctx context.Context, paymentID uuid.UUID, receipt string) (*VerifyResult, error) {
	var r VerifyResult
	if err := c.post(ctx, "/api/payment/ton/check", verifyRequest{PaymentID: paymentID.String(), TxHash: receipt}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) InitStarsPayment(ctx context.Context, paymentID uuid.UUID) (*StarsInvoice, error) {
	var r StarsInvoice
	if err := c.get(ctx, "/api/payment/stars/init", paymentQuery(paymentID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*PaymentStatus, error) {
	var r PaymentStatus
	if err := c.get(ctx, "/api/payment/status", paymentQuery(paymentID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
