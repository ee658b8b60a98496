package main

import (
	"context"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"zyvpn-miniapp/config"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/bot"
	"zyvpn-miniapp/internal/cache"
	"zyvpn-miniapp/internal/db"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/logger"
	"zyvpn-miniapp/internal/payment"
	"zyvpn-miniapp/internal/services"
)

const reminderDays = 3

func main() {
	config.LoadConfig()
	cfg := config.AppCfg
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Bad LOG_LEVEL: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db.InitDB(cfg.DatabaseURL, cfg.SQLitePath)
	prefs := db.NewPrefs(db.DB)

	var rates cache.Cache = cache.NewMemory()
	checks := map[string]services.Check{"db": services.ChatsCheck(prefs)}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis unavailable, using memory cache", zap.Error(err))
		} else {
			defer rc.Close()
			rates = rc
			checks["redis"] = func(ctx context.Context) error { return rc.Db.Ping(ctx).Err() }
		}
	}

	botapi, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("Failed to create bot", zap.Error(err))
		os.Exit(1)
	}
	logger.InitNotifier(botapi, cfg.AdminTelegramID)

	signer := host.NewSigner(cfg.BotToken, cfg.InitDataTTL)
	client := api.NewClient(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout}, nil)
	checks["api"] = func(ctx context.Context) error {
		_, err := client.GetRates(ctx)
		return err
	}
	checks["init_data"] = services.InitDataCheck(cfg.BotToken, signer, cfg.InitDataTTL)

	refresher := services.NewRatesRefresher(client, rates)
	if err := refresher.Refresh(ctx); err != nil {
		logger.Warn("initial rates refresh failed, sessions will use fallback", zap.Error(err))
	}
	reminder := services.NewReminder(botapi, prefs, client, signer, reminderDays)
	c := cron.New()
	if err := services.Schedule(ctx, c, refresher, reminder); err != nil {
		logger.Error("schedule jobs", zap.Error(err))
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	go func() {
		if err := services.NewStatusServer(cfg.HTTPAddr, checks).Start(ctx); err != nil {
			logger.Error("status server", zap.Error(err))
			logger.NotifyAdmin("Status server stopped: " + err.Error())
		}
	}()

	b := bot.New(bot.Deps{
		API:         botapi,
		Client:      client,
		Signer:      signer,
		Prefs:       prefs,
		Rates:       rates,
		BotName:     cfg.BotName,
		BotUsername: botapi.Self.UserName,
		Payment: payment.Config{
			PollInterval: cfg.PollInterval,
			MaxAttempts:  cfg.PollMaxAttempts,
			TxValidity:   cfg.TxValidity,
		},
		InvoiceTimeout: cfg.InvoiceTimeout,
		SessionIdle:    cfg.SessionIdle,
	})
	b.StartWithInstance(ctx, botapi)
	logger.Info("bot stopped")
}
