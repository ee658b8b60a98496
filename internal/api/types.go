package api

import (
	"github.com/google/uuid"
	"time"
)

type SubscriptionState string

const (
	SubscriptionActive    SubscriptionState = "active"
	SubscriptionExpired   SubscriptionState = "expired"
	SubscriptionCancelled SubscriptionState = "cancelled"
)

type Provider string

const (
	ProviderTON     Provider = "ton"
	ProviderStars   Provider = "stars"
	ProviderBalance Provider = "balance"
)

type PaymentState string

const (
	PaymentPending    PaymentState = "pending"
	PaymentAwaitingTx PaymentState = "awaiting_tx"
	PaymentCompleted  PaymentState = "completed"
	PaymentFailed     PaymentState = "failed"
)

// Terminal - дальше статус платежа уже не изменится
func (s PaymentState) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

type User struct {
	ID           int64         `json:"id"`
	Username     *string       `json:"username,omitempty"`
	FirstName    *string       `json:"first_name,omitempty"`
	LastName     *string       `json:"last_name,omitempty"`
	LanguageCode *string       `json:"language_code,omitempty"`
	ReferralCode string        `json:"referral_code"`
	ReferredBy   *int64        `json:"referred_by,omitempty"`
	Balance      float64       `json:"balance"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// DisplayName - имя для приветствия
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.FirstName != nil && *u.FirstName != "":
		return *u.FirstName
	case u.Username != nil && *u.Username != "":
		return "@" + *u.Username
	default:
		return ""
	}
}

type Plan struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DurationDays int       `json:"duration_days"`
	TrafficGB    int       `json:"traffic_gb"`
	MaxDevices   int       `json:"max_devices"`
	PriceTON     float64   `json:"price_ton"`
	PriceStars   int       `json:"price_stars"`
	PriceUSD     float64   `json:"price_usd"`
	IsActive     bool      `json:"is_active"`
	SortOrder    int       `json:"sort_order"`
}

// Unlimited - трафик тарифа не ограничен
func (p Plan) Unlimited() bool {
	return p.TrafficGB <= 0
}

// Devices - лимит устройств, 3 если сервер не прислал
func (p Plan) Devices() int {
	if p.MaxDevices <= 0 {
		return 3
	}
	return p.MaxDevices
}

type Subscription struct {
	ID            uuid.UUID         `json:"id"`
	UserID        int64             `json:"user_id"`
	PlanID        uuid.UUID         `json:"plan_id"`
	ServerID      *uuid.UUID        `json:"server_id,omitempty"`
	Status        SubscriptionState `json:"status"`
	ConnectionKey string            `json:"connection_key"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	TrafficLimit  int64             `json:"traffic_limit"`
	TrafficUsed   int64             `json:"traffic_used"`
	MaxDevices    int               `json:"max_devices"`
	CreatedAt     time.Time         `json:"created_at"`
}

type TrafficGB struct {
	Used      float64 `json:"used"`
	Limit     float64 `json:"limit"`
	Remaining float64 `json:"remaining"`
}

type SubscriptionStatus struct {
	Active        bool          `json:"active"`
	Subscription  *Subscription `json:"subscription,omitempty"`
	DaysRemaining int           `json:"days_remaining"`
	TrafficGB     TrafficGB     `json:"traffic_gb"`
}

type Payment struct {
	ID             uuid.UUID    `json:"id"`
	UserID         int64        `json:"user_id"`
	SubscriptionID *uuid.UUID   `json:"subscription_id,omitempty"`
	PlanID         *uuid.UUID   `json:"plan_id,omitempty"`
	Provider       Provider     `json:"provider"`
	Amount         float64      `json:"amount"`
	Currency       string       `json:"currency"`
	Status         PaymentState `json:"status"`
	ExternalID     *string      `json:"external_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

type PaymentStatus struct {
	PaymentID  uuid.UUID    `json:"payment_id"`
	Status     PaymentState `json:"status"`
	Amount     float64      `json:"amount"`
	Currency   string       `json:"currency"`
	Key        *string      `json:"key,omitempty"`
	NewBalance *float64     `json:"new_balance,omitempty"`
}

type TONPaymentInfo struct {
	PaymentID     uuid.UUID `json:"payment_id"`
	WalletAddress string    `json:"wallet_address"`
	Amount        string    `json:"amount"`
	Comment       string    `json:"comment"`
	DeepLink      string    `json:"deep_link"`
}

type StarsInvoice struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	InvoiceLink string    `json:"invoice_link"`
}

type TransactionType string

const (
	TxReferralBonus       TransactionType = "referral_bonus"
	TxGiveaway            TransactionType = "giveaway"
	TxSubscriptionPayment TransactionType = "subscription_payment"
	TxRefund              TransactionType = "refund"
	TxManual              TransactionType = "manual"
	TxTopUp               TransactionType = "top_up"
	TxPromoCode           TransactionType = "promo_code"
)

type BalanceTransaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        int64           `json:"user_id"`
	Amount        float64         `json:"amount"`
	Type          TransactionType `json:"type"`
	Description   *string         `json:"description,omitempty"`
	ReferenceID   *string         `json:"reference_id,omitempty"`
	BalanceBefore float64         `json:"balance_before"`
	BalanceAfter  float64         `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ServerStatus string

const (
	ServerOnline  ServerStatus = "online"
	ServerOffline ServerStatus = "offline"
	ServerUnknown ServerStatus = "unknown"
)

type Server struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Country     string       `json:"country"`
	City        *string      `json:"city,omitempty"`
	FlagEmoji   string       `json:"flag_emoji"`
	IsActive    bool         `json:"is_active"`
	PingMs      *int         `json:"ping_ms,omitempty"`
	Status      ServerStatus `json:"status"`
	LoadPercent float64      `json:"load_percent"`
}

// AdminServer - сервер с полями, которые видит только админ
type AdminServer struct {
	Server
	ServerAddress string `json:"server_address"`
	ServerPort    int    `json:"server_port"`
	SortOrder     int    `json:"sort_order"`
	Capacity      int    `json:"capacity"`
	CurrentLoad   int    `json:"current_load"`
}

type SwitchInfo struct {
	Price        float64 `json:"price"`
	FreeSwitches int     `json:"free_switches"`
}

type SwitchResult struct {
	Success      bool          `json:"success"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Key          string        `json:"key"`
	UsedFree     bool          `json:"used_free"`
}

type ReferralStats struct {
	TotalReferrals   int     `json:"total_referrals"`
	PendingReferrals int     `json:"pending_referrals"`
	CreditedBonusTON float64 `json:"credited_bonus_ton"`
}

type ReferralLink struct {
	Link string `json:"link"`
	Code string `json:"code"`
}

type ExchangeRates struct {
	TonUSD float64 `json:"ton_usd"`
	UsdRUB float64 `json:"usd_rub"`
	TonRUB float64 `json:"ton_rub"`
}

// FallbackRates используется, когда курсы недоступны
var FallbackRates = ExchangeRates{TonUSD: 5.0, UsdRUB: 95.0, TonRUB: 475.0}

type PromoApplyResult struct {
	Success    bool     `json:"success"`
	Type       string   `json:"type"`
	Value      float64  `json:"value"`
	NewBalance *float64 `json:"new_balance,omitempty"`
	Message    string   `json:"message"`
}

type PromoValidation struct {
	Valid       bool     `json:"valid"`
	Type        *string  `json:"type,omitempty"`
	Value       *float64 `json:"value,omitempty"`
	Description *string  `json:"description,omitempty"`
	Error       *string  `json:"error,omitempty"`
}

type PromoCode struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	Type        string     `json:"type"`
	Value       float64    `json:"value"`
	MaxUses     *int       `json:"max_uses,omitempty"`
	UsedCount   int        `json:"used_count"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
	Description *string    `json:"description,omitempty"`
}

type Ban struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *int64     `json:"user_id,omitempty"`
	IPAddress *string    `json:"ip_address,omitempty"`
	Reason    *string    `json:"reason,omitempty"`
	BannedAt  time.Time  `json:"banned_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `json:"is_active"`
}

type AdminLog struct {
	ID           uuid.UUID `json:"id"`
	AdminID      int64     `json:"admin_id"`
	Action       string    `json:"action"`
	TargetUserID *int64    `json:"target_user_id,omitempty"`
	Details      *string   `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type AdminStats struct {
	TotalUsers          int `json:"total_users"`
	ActiveSubscriptions int `json:"active_subscriptions"`
	BannedUsers         int `json:"banned_users"`
	ActivePromoCodes    int `json:"active_promo_codes"`
}

type ServerTestResult struct {
	Connected  bool   `json:"connected"`
	Port       int    `json:"port,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
	ShortID    string `json:"short_id,omitempty"`
	ServerName string `json:"server_name,omitempty"`
	Error      string `json:"error,omitempty"`
}
