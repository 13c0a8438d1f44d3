// Команда foodcli запускает консольный клиент сервиса заказа еды.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/cart"
	"github.com/mmeshcher/food-ordering-system/internal/client"
	"github.com/mmeshcher/food-ordering-system/internal/config"
	"github.com/mmeshcher/food-ordering-system/internal/menu"
	"github.com/mmeshcher/food-ordering-system/internal/session"
	"github.com/mmeshcher/food-ordering-system/internal/workflow"
)

const usage = `usage: foodcli <command> [flags]

commands:
  register -u NAME -p PASSWORD [-role ROLE]
  login -u NAME -p PASSWORD
  logout
  whoami
  menu [-category C] [-sort name|price] [-order asc|desc] [-search Q] [-page N] [-limit N]
  add ITEM_ID
  qty ITEM_ID QUANTITY
  remove ITEM_ID
  cart
  clear
  checkout
  orders
  toggle ORDER_ID
  status ORDER_ID STATUS`

// app связывает компоненты клиента для одного запуска команды.
type app struct {
	out      io.Writer
	logger   *zap.Logger
	sessions *session.Manager
	api      *client.Client
	cart     *cart.Cart
	menu     *menu.Service
	orders   *workflow.Workflow
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ParseClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Verbose)
	defer logger.Sync()

	a, cleanup, err := newApp(ctx, cfg, logger, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		cleanup()
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newApp(ctx context.Context, cfg *config.ClientConfig, logger *zap.Logger, out io.Writer) (*app, func(), error) {
	sessions, err := session.NewManager(session.NewFileStore(cfg.SessionFile))
	if err != nil {
		logger.Warn("failed to restore session", zap.Error(err))
	}

	cleanup := func() {}
	var store cart.Store = cart.NewFileStore(cfg.CartFile)
	if cfg.CartRedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.CartRedisAddress})
		cleanup = func() { _ = rdb.Close() }

		key := "anonymous"
		if sess, ok := sessions.Current(); ok {
			key = sess.UserID
		}
		store = cart.NewRedisStore(rdb, key)
	}

	api := client.NewClient(cfg.APIAddress, sessions)
	c := cart.New(ctx, store, logger)

	return &app{
		out:      out,
		logger:   logger,
		sessions: sessions,
		api:      api,
		cart:     c,
		menu:     menu.NewService(api, logger),
		orders:   workflow.New(api, c, sessions, logger),
	}, cleanup, nil
}

// describe превращает ошибку в сообщение для пользователя.
func describe(err error) string {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return "not logged in or session expired: " + apperr.Message(err)
	case errors.Is(err, workflow.ErrBusy):
		return "checkout already in progress"
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return apperr.Message(err)
}
