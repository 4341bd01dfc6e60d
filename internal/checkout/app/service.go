package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	orderapp "github.com/dwikikusuma/marketplace-checkout/internal/order/app"
	orderdomain "github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/payment"
	"github.com/dwikikusuma/marketplace-checkout/internal/settings"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type CartReader interface {
	GetCart(ctx context.Context, userID string) ([]domain.CartLine, error)
	ClearCart(ctx context.Context, userID string) error
}

type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

type Product struct {
	ID             string
	SellerID       string
	SellerFlagged  bool
	Name           string
	Currency       string
	Price          decimal.Decimal
	Published      bool
	Stock          int32
	UnlimitedStock bool
	RequiredFields []string
}

type SettingsSource interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

type Gateways interface {
	Lookup(m domain.PaymentMethod) (payment.Adapter, error)
}

type Orders interface {
	Materialize(req orderapp.MaterializeRequest) ([]orderdomain.Order, error)
	Place(ctx context.Context, orders []orderdomain.Order, init payment.Initiation, walletDebit decimal.Decimal, snap settings.Snapshot) ([]orderdomain.Order, error)
}

type Options struct {
	MaxConcurrent  int
	GatewayTimeout time.Duration
}

type Service struct {
	Cart     CartReader
	Catalog  CatalogReader
	Settings SettingsSource
	Gateways Gateways
	Orders   Orders

	log            *slog.Logger
	maxConcurrent  int
	gatewayTimeout time.Duration
}

func NewService(cart CartReader, catalog CatalogReader, settings SettingsSource, gateways Gateways, orders Orders, log *slog.Logger, opts Options) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 10 * time.Second
	}

	return &Service{
		Cart:           cart,
		Catalog:        catalog,
		Settings:       settings,
		Gateways:       gateways,
		Orders:         orders,
		log:            log,
		maxConcurrent:  opts.MaxConcurrent,
		gatewayTimeout: opts.GatewayTimeout,
	}
}

type SubmitRequest struct {
	BuyerID string
	// Items falls back to the buyer's saved cart when empty.
	Items  []domain.CartLine
	Method string
}

type SubmitResult struct {
	Reference string
	Orders    []orderdomain.Order
	Fees      domain.FeeBreakdown
	Payment   payment.Initiation
}

func (r SubmitResult) OrderIDs() []string {
	ids := make([]string, len(r.Orders))
	for i, o := range r.Orders {
		ids[i] = o.ID
	}
	return ids
}

// Quote prices the cart for display. Submit recomputes everything, so the
// numbers shown here are advisory.
func (s *Service) Quote(ctx context.Context, buyerID string, items []domain.CartLine, method string) (domain.Quote, error) {
	m, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return domain.Quote{}, err
	}
	snap, err := s.Settings.Snapshot(ctx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("load settings: %w", err)
	}
	quote, _, err := s.quote(ctx, buyerID, items, m, snap)
	return quote, err
}

// Submit runs one checkout: price the lines from the catalog, compute fees,
// start the payment on the chosen rail and persist the order batch. Nothing
// is written when any step fails.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		return SubmitResult{}, err
	}
	snap, err := s.Settings.Snapshot(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load settings: %w", err)
	}

	quote, fromCart, err := s.quote(ctx, req.BuyerID, req.Items, method, snap)
	if err != nil {
		return SubmitResult{}, err
	}

	adapter, err := s.Gateways.Lookup(method)
	if err != nil {
		return SubmitResult{}, err
	}

	reference := newReference()
	orders, err := s.Orders.Materialize(orderapp.MaterializeRequest{
		BuyerID:   req.BuyerID,
		Reference: reference,
		Method:    method,
		Currency:  quote.Currency,
		Lines:     quote.Lines,
		Fees:      quote.Fees,
		Snapshot:  snap,
	})
	if err != nil {
		return SubmitResult{}, err
	}

	init, err := s.initiate(ctx, adapter, payment.Charge{
		Reference:   reference,
		BuyerID:     req.BuyerID,
		Amount:      quote.Fees.GrandTotal,
		Currency:    quote.Currency,
		Description: fmt.Sprintf("Marketplace order %s (%d items)", reference, len(orders)),
		TTL:         snap.SessionTTL(method),
		Sandbox:     snap.Sandbox,
	})
	if err != nil {
		return SubmitResult{}, err
	}

	debit := decimal.Zero
	if method == domain.MethodWallet {
		debit = quote.Fees.GrandTotal
	}
	placed, err := s.Orders.Place(ctx, orders, init, debit, snap)
	if err != nil {
		return SubmitResult{}, err
	}

	if fromCart {
		if err := s.Cart.ClearCart(ctx, req.BuyerID); err != nil {
			s.log.Warn("clear cart after checkout failed",
				slog.String("buyer_id", req.BuyerID),
				slog.String("reference", reference),
				slog.Any("err", err),
			)
		}
	}

	return SubmitResult{
		Reference: reference,
		Orders:    placed,
		Fees:      quote.Fees,
		Payment:   init,
	}, nil
}

func (s *Service) initiate(ctx context.Context, adapter payment.Adapter, charge payment.Charge) (payment.Initiation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	init, err := adapter.Initiate(ctx, charge)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return payment.Initiation{}, fmt.Errorf("%w: %s timed out", apperr.ErrGatewayUnavailable, adapter.Method())
		}
		return payment.Initiation{}, err
	}
	return init, nil
}

// quote resolves and prices the lines. The bool reports whether the saved
// cart was used.
func (s *Service) quote(ctx context.Context, buyerID string, items []domain.CartLine, method domain.PaymentMethod, snap settings.Snapshot) (domain.Quote, bool, error) {
	if strings.TrimSpace(buyerID) == "" {
		return domain.Quote{}, false, apperr.ErrUnauthenticated
	}

	fromCart := len(items) == 0
	if fromCart {
		saved, err := s.Cart.GetCart(ctx, buyerID)
		if err != nil {
			return domain.Quote{}, false, fmt.Errorf("load cart: %w", err)
		}
		items = saved
	}
	if len(items) == 0 {
		return domain.Quote{}, false, apperr.ErrEmptyCart
	}

	merged, err := domain.MergeLines(items)
	if err != nil {
		return domain.Quote{}, false, err
	}

	lines, err := s.price(ctx, merged, snap.Currency)
	if err != nil {
		return domain.Quote{}, false, err
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
	}

	return domain.Quote{
		Currency: snap.Currency,
		Method:   method,
		Lines:    lines,
		Fees:     CalculateFees(subtotal, method, snap),
	}, fromCart, nil
}

func (s *Service) price(ctx context.Context, items []domain.CartLine, currency string) ([]domain.QuoteLine, error) {
	lines := make([]domain.QuoteLine, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range items {
		idx := idx
		g.Go(func() error {
			it := items[idx]

			product, err := s.Catalog.GetProduct(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("failed to get product %s: %w", it.ProductID, err)
			}
			if err := checkLine(product, it, currency); err != nil {
				return err
			}

			lines[idx] = domain.QuoteLine{
				ProductID:      product.ID,
				Name:           product.Name,
				SellerID:       product.SellerID,
				SellerFlagged:  product.SellerFlagged,
				Quantity:       it.Quantity,
				UnitPrice:      product.Price,
				LineTotal:      product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2),
				RequiredFields: it.RequiredFields,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

func checkLine(p Product, it domain.CartLine, currency string) error {
	if !p.Published {
		return apperr.Invalid("product %s is not available", p.ID)
	}
	if p.Currency != currency {
		return apperr.Invalid("product %s is priced in %s, checkout is in %s", p.ID, p.Currency, currency)
	}
	if !p.UnlimitedStock && p.Stock < it.Quantity {
		return fmt.Errorf("%w: %s has %d left", apperr.ErrOutOfStock, p.ID, p.Stock)
	}
	for _, field := range p.RequiredFields {
		if strings.TrimSpace(it.RequiredFields[field]) == "" {
			return apperr.Invalid("product %s needs %q", p.ID, field)
		}
	}
	return nil
}

func newReference() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
