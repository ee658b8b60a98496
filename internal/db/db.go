package db

import (
	"context"
	"errors"
	"fmt"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"log"
)

var DB *gorm.DB

// Open - Postgres, если задан DATABASE_URL, иначе файл SQLite
func Open(databaseURL, sqlitePath string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	} else {
		dialector = sqlite.Open(sqlitePath)
	}
	conn, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := conn.AutoMigrate(&ChatPref{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

func InitDB(databaseURL, sqlitePath string) {
	conn, err := Open(databaseURL, sqlitePath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	DB = conn
}

// Prefs - доступ к ChatPref
type Prefs struct {
	db *gorm.DB
}

func NewPrefs(conn *gorm.DB) *Prefs {
	return &Prefs{db: conn}
}

// Touch создаёт запись или обновляет профиль, не трогая флаги
func (p *Prefs) Touch(ctx context.Context, pref ChatPref) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"chat_id", "first_name", "last_name", "username", "language_code", "updated_at"}),
	}).Create(&pref).Error
}

func (p *Prefs) Get(ctx context.Context, telegramID int64) (ChatPref, error) {
	var pref ChatPref
	err := p.db.WithContext(ctx).First(&pref, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ChatPref{TelegramID: telegramID}, nil
	}
	return pref, err
}

func (p *Prefs) set(ctx context.Context, telegramID int64, column string, value any) error {
	res := p.db.WithContext(ctx).Model(&ChatPref{}).Where("telegram_id = ?", telegramID).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		pref := ChatPref{TelegramID: telegramID, ChatID: telegramID}
		if err := p.db.WithContext(ctx).Create(&pref).Error; err != nil {
			return err
		}
		return p.db.WithContext(ctx).Model(&ChatPref{}).Where("telegram_id = ?", telegramID).Update(column, value).Error
	}
	return nil
}

func (p *Prefs) OnboardingSeen(ctx context.Context, telegramID int64) (bool, error) {
	pref, err := p.Get(ctx, telegramID)
	return pref.OnboardingSeen, err
}

func (p *Prefs) MarkOnboardingSeen(ctx context.Context, telegramID int64) error {
	return p.set(ctx, telegramID, "onboarding_seen", true)
}

func (p *Prefs) WalletAddress(ctx context.Context, telegramID int64) (string, error) {
	pref, err := p.Get(ctx, telegramID)
	return pref.WalletAddress, err
}

func (p *Prefs) SetWalletAddress(ctx context.Context, telegramID int64, addr string) error {
	return p.set(ctx, telegramID, "wallet_address", addr)
}

func (p *Prefs) ReferralApplied(ctx context.Context, telegramID int64) (bool, error) {
	pref, err := p.Get(ctx, telegramID)
	return pref.ReferralApplied, err
}

func (p *Prefs) MarkReferralApplied(ctx context.Context, telegramID int64) error {
	return p.set(ctx, telegramID, "referral_applied", true)
}

func (p *Prefs) MarkReminded(ctx context.Context, telegramID, expiresAt int64) error {
	return p.set(ctx, telegramID, "reminded_expiry", expiresAt)
}

// KnownChats - все, кто хоть раз писал боту (для напоминаний)
func (p *Prefs) KnownChats(ctx context.Context) ([]ChatPref, error) {
	var prefs []ChatPref
	err := p.db.WithContext(ctx).Order("telegram_id").Find(&prefs).Error
	return prefs, err
}

func (p *Prefs) CountChats(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&ChatPref{}).Count(&n).Error
	return n, err
}
