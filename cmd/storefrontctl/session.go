package main

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/client"
	"github.com/vladislavdragonenkov/storefront/internal/service/history"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/recyclebin"
	"github.com/vladislavdragonenkov/storefront/internal/store"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// session связывает клиентские сервисы одного запуска CLI.
type session struct {
	profile     Profile
	client      *client.Client
	store       *store.Store
	coordinator *lifecycle.Coordinator
	history     *history.Engine
	bin         *recyclebin.Lifecycle
	logger      *log.Entry
	out         io.Writer
}

func newSession(profile Profile, out io.Writer) (*session, error) {
	logger := newLogger(profile.LogLevel)

	opts := []client.Option{
		client.WithTimeout(profile.Timeout),
		client.WithLogger(logger.WithField("component", "client")),
		client.WithHeader("User-Agent", version.UserAgent("ctl")),
	}
	for name, value := range profile.Headers {
		opts = append(opts, client.WithHeader(name, value))
	}
	c, err := client.New(profile.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	st := store.New()
	locks := store.NewLocks()
	orders := c.Orders()
	coordinator := lifecycle.NewCoordinator(orders, c, st,
		lifecycle.WithLogger(logger.WithField("component", "lifecycle")),
		lifecycle.WithTrashCounter(st),
		lifecycle.WithLocks(locks),
	)
	return &session{
		profile:     profile,
		client:      c,
		store:       st,
		coordinator: coordinator,
		history:     history.NewEngine(orders, st, history.WithLogger(logger.WithField("component", "history"))),
		bin: recyclebin.New(c.RecycleBin(), st,
			recyclebin.WithLogger(logger.WithField("component", "recyclebin")),
			recyclebin.WithLocks(locks),
			recyclebin.WithOrders(coordinator),
		),
		logger: logger,
		out:    out,
	}, nil
}

// newLogger пишет в stderr, чтобы логи не смешивались с выводом команд.
func newLogger(level string) *log.Entry {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.WarnLevel
	}
	logger.SetLevel(parsed)
	return logger.WithField("component", "storefrontctl")
}
