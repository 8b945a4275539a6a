// Command storefrontctl управляет заказами и корзиной витрины через REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const usage = `usage: storefrontctl [-profile file] [-base-url url] <command> [args]

commands:
  products                                  list products with stock
  orders create|complete|cancel|delete|timeline
  history [-tab pending|completed|cancelled|all|deleted] [-page n] [-search text]
  trash list|count|delete|restore|purge -kind order|category|product
  watch                                     stream order events from kafka
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			_, _ = fmt.Fprint(os.Stderr, usage)
		}
		_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", describeError(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("storefrontctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	profilePath := fs.String("profile", "", "YAML profile (fallback: "+envProfile+")")
	baseURL := fs.String("base-url", "", "override profile base_url")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: command is required", errUsage)
	}

	profile, err := loadProfile(*profilePath)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		profile.BaseURL = *baseURL
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	if command == "watch" {
		return runWatch(ctx, profile, rest, out)
	}

	s, err := newSession(profile, out)
	if err != nil {
		return err
	}

	switch command {
	case "products":
		return s.products(ctx)
	case "orders":
		return s.orders(ctx, rest)
	case "history":
		return s.historyCmd(ctx, rest)
	case "trash":
		return s.trash(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// describeError делает сообщение об ошибке понятным оператору.
func describeError(err error) string {
	var shortage *domain.ShortageError
	switch {
	case errors.As(err, &shortage):
		parts := make([]string, 0, len(shortage.Shortages))
		for _, s := range shortage.Shortages {
			parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.ProductID, s.Requested, s.Available))
		}
		return "not enough stock: " + strings.Join(parts, ", ")
	case errors.Is(err, domain.ErrCartStockExceeded):
		return "not enough stock: " + err.Error()
	case domain.IsRetryable(err):
		return err.Error() + " (service unreachable, safe to retry)"
	default:
		return err.Error()
	}
}
