package services

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"net/http"
	"sort"
	"time"
	"zyvpn-miniapp/internal/db"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/logger"
)

const (
	checkTimeout    = 3 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Check - одна проверка для /health
type Check func(ctx context.Context) error

// StatusServer отдаёт /health и /metrics
type StatusServer struct {
	addr   string
	checks map[string]Check
}

func NewStatusServer(addr string, checks map[string]Check) *StatusServer {
	return &StatusServer{addr: addr, checks: checks}
}

type healthReply struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *StatusServer) health(w http.ResponseWriter, r *http.Request) {
	defer logger.NotifyOnPanic("health")
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	reply := healthReply{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			reply.Checks[name] = err.Error()
			reply.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		reply.Checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(reply)
}

// Start слушает addr до отмены ctx
func (s *StatusServer) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("status server shutdown", zap.Error(err))
		}
	}()
	logger.Info("status server listening", zap.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ChatsCheck считает известные чаты: заодно проверяет базу и обновляет метрику
func ChatsCheck(prefs *db.Prefs) Check {
	return func(ctx context.Context) error {
		n, err := prefs.CountChats(ctx)
		if err != nil {
			return err
		}
		knownChats.Set(float64(n))
		return nil
	}
}

// InitDataCheck подписывает init data тем же ключом, что и сессии, и проверяет её.
// Ловит пустой или битый токен до того, как сервер начнёт отвечать 401.
func InitDataCheck(botToken string, signer *host.Signer, maxAge time.Duration) Check {
	return func(ctx context.Context) error {
		u := host.WebAppUser{ID: 1, FirstName: "health"}
		_, err := host.ValidateInitData(botToken, signer.For(u), maxAge, time.Now())
		return err
	}
}
