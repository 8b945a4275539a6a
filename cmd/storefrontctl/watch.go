package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// runWatch печатает события заказов из Kafka, пока не отменён ctx.
func runWatch(ctx context.Context, profile Profile, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	brokers := fs.String("brokers", strings.Join(profile.Kafka.Brokers, ","), "comma separated broker list")
	topic := fs.String("topic", profile.Kafka.Topic, "order events topic")
	group := fs.String("group", profile.Kafka.Group, "consumer group")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	brokerList := splitBrokers(*brokers)
	if len(brokerList) == 0 {
		return fmt.Errorf("%w: kafka brokers are not configured", errUsage)
	}

	logger := newLogger(profile.LogLevel)
	var mu sync.Mutex
	handler := kafka.OrderEventHandler(func(_ context.Context, event domain.OrderEvent) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintln(out, formatEvent(event))
		return err
	}, logger.WithField("component", "watch"))

	consumer, err := kafka.NewConsumer(brokerList, *group, []string{*topic}, handler, logger.WithField("component", "kafka-consumer"))
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return consumer.Stop()
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func formatEvent(event domain.OrderEvent) string {
	number := event.OrderNumber
	if number == "" {
		number = event.OrderID
	}
	return fmt.Sprintf("%s %-16s %-10s %-9s total=%s",
		event.Occurred.Local().Format(time.DateTime), event.Type, number, event.Status, money(event.TotalMinor))
}
