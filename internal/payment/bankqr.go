package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

type BankQRConfig struct {
	BankCode     string
	Account      string
	AccountName  string
	StatementURL string
	APIKey       string
}

type BankQR struct {
	cfg    BankQRConfig
	client client
	now    func() time.Time
}

func NewBankQR(cfg BankQRConfig, hc *http.Client) *BankQR {
	return &BankQR{cfg: cfg, client: newClient(cfg.APIKey, hc), now: time.Now}
}

func (b *BankQR) Method() domain.PaymentMethod { return domain.MethodBankQR }

// TransferPayload is what the buyer's banking app reads from the code.
func (b *BankQR) TransferPayload(c Charge) string {
	return strings.Join([]string{
		b.cfg.BankCode,
		b.cfg.Account,
		c.Amount.StringFixed(2),
		c.Currency,
		c.Reference,
	}, "|")
}

func (b *BankQR) Initiate(_ context.Context, c Charge) (Initiation, error) {
	payload := b.TransferPayload(c)

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return Initiation{}, fmt.Errorf("render transfer qr: %w", err)
	}

	return Initiation{
		Kind:      KindQR,
		Reference: c.Reference,
		QRImage:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		QRPayload: payload,
		ExpiresAt: expiry(b.now(), c.TTL, 10*time.Minute),
	}, nil
}

type statementResponse struct {
	Transactions []struct {
		Reference string `json:"reference"`
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"transactions"`
}

// Verify looks for an incoming transfer carrying the reference. Without a
// statement API nothing can be confirmed automatically.
func (b *BankQR) Verify(ctx context.Context, s Session) (bool, error) {
	if b.cfg.StatementURL == "" {
		return false, nil
	}

	q := url.Values{}
	q.Set("reference", s.Reference)
	q.Set("account", b.cfg.Account)

	var resp statementResponse
	if err := b.client.getJSON(ctx, b.cfg.StatementURL+"?"+q.Encode(), &resp); err != nil {
		return false, fmt.Errorf("query bank statement: %w", err)
	}

	for _, tx := range resp.Transactions {
		if tx.Reference != s.Reference {
			continue
		}
		if tx.Currency != "" && !strings.EqualFold(tx.Currency, s.Currency) {
			continue
		}
		amount, err := decimal.NewFromString(tx.Amount)
		if err != nil {
			continue
		}
		if amount.GreaterThanOrEqual(s.Amount) {
			return true, nil
		}
	}
	return false, nil
}
