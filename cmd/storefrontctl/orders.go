package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/history"
)

// lineFlags собирает повторяющиеся -line product:qty.
type lineFlags []cartLine

type cartLine struct {
	productID string
	qty       int32
}

func (l *lineFlags) String() string {
	parts := make([]string, 0, len(*l))
	for _, line := range *l {
		parts = append(parts, fmt.Sprintf("%s:%d", line.productID, line.qty))
	}
	return strings.Join(parts, ",")
}

func (l *lineFlags) Set(value string) error {
	productID, rawQty, found := strings.Cut(value, ":")
	if !found {
		rawQty = "1"
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("line %q has no product id", value)
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(rawQty), 10, 32)
	if err != nil || qty <= 0 {
		return fmt.Errorf("line %q has invalid quantity", value)
	}
	*l = append(*l, cartLine{productID: productID, qty: int32(qty)})
	return nil
}

func money(minor int64) string {
	return api.MoneyFromMinor(minor).StringFixed(2)
}

func (s *session) products(ctx context.Context) error {
	products, err := s.client.ListProducts(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK\tCATEGORY")
	for _, p := range products {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, money(p.PriceMinor), p.Stock, p.CategoryID)
	}
	return w.Flush()
}

func (s *session) orders(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: orders requires a subcommand", errUsage)
	}

	sub, rest := args[0], args[1:]
	if sub == "create" {
		return s.createOrder(ctx, rest)
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: orders %s requires an order id", errUsage, sub)
	}
	orderID := rest[0]

	switch sub {
	case "complete", "cancel":
		if err := s.coordinator.Refresh(ctx); err != nil {
			return err
		}
		transition := s.coordinator.Complete
		if sub == "cancel" {
			transition = s.coordinator.Cancel
		}
		order, err := transition(ctx, orderID)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "%s %s\n", order.OrderNumber, order.Status)
		return nil
	case "delete":
		if err := s.coordinator.Delete(ctx, orderID); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "order %s moved to recycle bin\n", orderID)
		return nil
	case "timeline":
		events, err := s.client.Orders().Timeline(ctx, orderID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "OCCURRED\tEVENT\tSTATUS\tREASON")
		for _, e := range events {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Occurred.Format(time.RFC3339), e.Type, e.Status, e.Reason)
		}
		return w.Flush()
	default:
		return fmt.Errorf("%w: unknown orders subcommand %q", errUsage, sub)
	}
}

func (s *session) createOrder(ctx context.Context, args []string) error {
	var (
		lines    lineFlags
		intent   domain.OrderIntent
		kind     string
		delivery string
		shipping string
	)
	fs := flag.NewFlagSet("orders create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(&lines, "line", "product:qty, repeatable")
	fs.StringVar(&kind, "type", string(domain.OrderTypeInStore), "online|in-store")
	fs.StringVar(&intent.Customer.Name, "name", "", "customer name")
	fs.StringVar(&intent.Customer.Phone, "phone", "", "customer phone")
	fs.StringVar(&intent.Customer.Email, "email", "", "customer email")
	fs.StringVar(&delivery, "delivery", string(domain.DeliveryPickup), "pickup|delivery")
	fs.StringVar(&intent.ShippingAddress, "address", "", "shipping address")
	fs.StringVar(&intent.PaymentMethod, "payment", "cash", "payment method")
	fs.StringVar(&shipping, "shipping", "0", "shipping cost, e.g. 4.99")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one -line is required", errUsage)
	}

	shippingAmount, err := decimal.NewFromString(shipping)
	if err != nil {
		return fmt.Errorf("%w: invalid -shipping %q", errUsage, shipping)
	}
	if intent.ShippingMinor, err = api.MoneyToMinor(shippingAmount); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	intent.Type = domain.OrderType(kind)
	intent.DeliveryOption = domain.DeliveryOption(delivery)

	basket, err := s.fillBasket(ctx, lines)
	if err != nil {
		return err
	}
	order, err := s.coordinator.Create(ctx, basket.Intent(intent))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "created %s id=%s total=%s status=%s\n", order.OrderNumber, order.ID, money(order.TotalMinor), order.Status)
	return nil
}

// fillBasket собирает корзину по текущему каталогу, проверяя остатки на клиенте.
func (s *session) fillBasket(ctx context.Context, lines lineFlags) (*cart.Aggregator, error) {
	products, err := s.client.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	basket := cart.NewAggregator()
	for _, line := range lines {
		product, ok := byID[line.productID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", line.productID, domain.ErrNotFound)
		}
		if err := basket.Add(product, line.qty); err != nil {
			return nil, fmt.Errorf("add %s to cart: %w", line.productID, err)
		}
	}
	return basket, nil
}

func (s *session) historyCmd(ctx context.Context, args []string) error {
	var (
		tab        string
		page       int
		refinement history.Refinement
		kind       string
		from, to   string
	)
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&tab, "tab", string(history.TabPending), "pending|completed|cancelled|all|deleted")
	fs.IntVar(&page, "page", 1, "page number")
	fs.StringVar(&refinement.Text, "search", "", "filter by customer name, phone or order number")
	fs.StringVar(&kind, "type", "", "filter by order type")
	fs.StringVar(&from, "from", "", "created on or after YYYY-MM-DD")
	fs.StringVar(&to, "to", "", "created on or before YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	refinement.Type = domain.OrderType(kind)
	var err error
	if refinement.From, err = parseDate(from); err != nil {
		return err
	}
	if refinement.To, err = parseDate(to); err != nil {
		return err
	}

	if err := s.coordinator.Refresh(ctx); err != nil {
		return err
	}
	if _, err := s.bin.SyncCount(ctx, domain.EntityKindOrder); err != nil {
		return err
	}
	if err := s.history.SelectTab(history.Tab(tab)); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	s.history.SetPage(page)
	s.history.Refine(refinement)

	result, err := s.history.Load(ctx)
	if err != nil {
		return err
	}
	counts, err := s.history.Counts(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NUMBER\tSTATUS\tTYPE\tCUSTOMER\tTOTAL\tCREATED")
	for _, o := range result.Items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.OrderNumber, o.Status, o.Type, o.Customer.Name, money(o.TotalMinor), o.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "page %d/%d, %d total | pending %d completed %d cancelled %d all %d deleted %d\n",
		result.CurrentPage, result.LastPage, result.Total,
		counts.Pending, counts.Completed, counts.Cancelled, counts.All, counts.Deleted)
	return nil
}

func parseDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", errUsage, value)
	}
	return t, nil
}
