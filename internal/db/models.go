package db

import "time"

// ChatPref - локальные настройки чата. Баланс, подписки и платежи здесь не хранятся.
type ChatPref struct {
	TelegramID      int64 `gorm:"primaryKey;autoIncrement:false"`
	ChatID          int64
	FirstName       string
	LastName        string
	Username        string
	LanguageCode    string
	OnboardingSeen  bool   `gorm:"default:false"`
	WalletAddress   string `gorm:"default:''"`
	ReferralApplied bool   `gorm:"default:false"`
	// RemindedExpiry - expires_at подписки (unix), о которой уже напомнили
	RemindedExpiry int64 `gorm:"default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
