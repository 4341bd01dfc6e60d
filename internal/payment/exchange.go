package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
)

const (
	memoLength   = 8
	memoAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type ExchangeConfig struct {
	Coin           string
	Network        string
	DepositAddress string
	DepositsURL    string
	APIKey         string
}

// ExchangeTransfer asks the buyer to send a stablecoin to the platform's
// exchange deposit address with a memo. Amounts are taken 1:1 against the
// checkout currency.
type ExchangeTransfer struct {
	cfg    ExchangeConfig
	client client
	now    func() time.Time
}

func NewExchangeTransfer(cfg ExchangeConfig, hc *http.Client) *ExchangeTransfer {
	return &ExchangeTransfer{cfg: cfg, client: newClient(cfg.APIKey, hc), now: time.Now}
}

func (e *ExchangeTransfer) Method() domain.PaymentMethod { return domain.MethodExchangeTransfer }

func (e *ExchangeTransfer) Initiate(_ context.Context, c Charge) (Initiation, error) {
	if e.cfg.DepositAddress == "" {
		return Initiation{}, fmt.Errorf("%w: no deposit address for %s/%s", apperr.ErrGatewayUnavailable, e.cfg.Coin, e.cfg.Network)
	}

	memo, err := NewMemoCode()
	if err != nil {
		return Initiation{}, err
	}

	return Initiation{
		Kind:      KindDepositInstructions,
		Reference: c.Reference,
		Address:   e.cfg.DepositAddress,
		Coin:      e.cfg.Coin,
		Network:   e.cfg.Network,
		MemoCode:  memo,
		ExpiresAt: expiry(e.now(), c.TTL, 30*time.Minute),
	}, nil
}

// NewMemoCode returns an 8 character code without look-alike characters.
func NewMemoCode() (string, error) {
	buf := make([]byte, memoLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate memo: %w", err)
	}
	for i, b := range buf {
		buf[i] = memoAlphabet[int(b)%len(memoAlphabet)]
	}
	return string(buf), nil
}

type depositsResponse struct {
	Deposits []struct {
		Memo   string `json:"memo"`
		Coin   string `json:"coin"`
		Amount string `json:"amount"`
		Status string `json:"status"`
	} `json:"deposits"`
}

func (e *ExchangeTransfer) Verify(ctx context.Context, s Session) (bool, error) {
	if e.cfg.DepositsURL == "" || s.MemoCode == "" {
		return false, nil
	}

	q := url.Values{}
	q.Set("memo", s.MemoCode)
	q.Set("coin", e.cfg.Coin)

	var resp depositsResponse
	if err := e.client.getJSON(ctx, e.cfg.DepositsURL+"?"+q.Encode(), &resp); err != nil {
		return false, fmt.Errorf("query exchange deposits: %w", err)
	}

	var credited decimal.Decimal
	for _, d := range resp.Deposits {
		if d.Memo != s.MemoCode || !strings.EqualFold(d.Coin, e.cfg.Coin) {
			continue
		}
		switch strings.ToLower(d.Status) {
		case "credited", "success", "completed":
		default:
			continue
		}
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			continue
		}
		credited = credited.Add(amount)
	}
	return credited.GreaterThanOrEqual(s.Amount), nil
}
