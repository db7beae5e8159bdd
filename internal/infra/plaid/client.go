// Package plaid provides a client for a Plaid-compatible transaction
// aggregation provider: link tokens, token exchange and windowed
// transaction/account fetches.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("plaid")

const dateLayout = "2006-01-02"

// Client wraps HTTP calls to the Plaid-compatible API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a Plaid client for the given environment
// (sandbox, development or production).
func NewClient(httpClient *http.Client, environment, clientID, secret string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    hostFor(environment),
		clientID:   clientID,
		secret:     secret,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

func hostFor(environment string) string {
	switch environment {
	case "production":
		return "https://production.plaid.com"
	case "development":
		return "https://development.plaid.com"
	default:
		return "https://sandbox.plaid.com"
	}
}

// WithBaseURL points the client at a different host. Used when the
// provider sits behind a gateway and in tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// doPost executes an authenticated POST with retry and circuit breaker,
// decoding the JSON response into out.
func (c *Client) doPost(ctx context.Context, path string, payload map[string]any, out any) error {
	// Credentials ride in the request body, per the provider's convention.
	payload["client_id"] = c.clientID
	payload["secret"] = c.secret

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			if resp.StatusCode != http.StatusOK {
				var provider struct {
					ErrorCode    string `json:"error_code"`
					ErrorMessage string `json:"error_message"`
				}
				if json.Unmarshal(raw, &provider) == nil && provider.ErrorMessage != "" {
					return fmt.Errorf("%s: %s", provider.ErrorCode, provider.ErrorMessage)
				}
				return fmt.Errorf("plaid API returned status %d", resp.StatusCode)
			}

			return json.Unmarshal(raw, out)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return nil, nil
	})

	if err != nil {
		c.logger.Error("plaid: request failed",
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return err
}

// CreateLinkToken issues a link token for the given client user id.
func (c *Client) CreateLinkToken(ctx context.Context, clientUserID string) (string, error) {
	ctx, span := tracer.Start(ctx, "PlaidClient.CreateLinkToken")
	defer span.End()

	var resp struct {
		LinkToken string `json:"link_token"`
	}
	err := c.doPost(ctx, "/link/token/create", map[string]any{
		"client_name":   "Finsight",
		"language":      "en",
		"country_codes": []string{"US"},
		"products":      []string{"transactions"},
		"user":          map[string]string{"client_user_id": clientUserID},
	}, &resp)
	if err != nil {
		return "", &domain.ErrExternalService{Service: "plaid", Err: err}
	}
	return resp.LinkToken, nil
}

// ExchangePublicToken swaps a public token for a long-lived access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	ctx, span := tracer.Start(ctx, "PlaidClient.ExchangePublicToken")
	defer span.End()

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.doPost(ctx, "/item/public_token/exchange", map[string]any{
		"public_token": publicToken,
	}, &resp)
	if err != nil {
		return "", &domain.ErrExternalService{Service: "plaid", Err: err}
	}
	return resp.AccessToken, nil
}

// transactionsResponse mirrors the provider's /transactions/get payload.
type transactionsResponse struct {
	Transactions []struct {
		Amount       float64 `json:"amount"`
		Date         string  `json:"date"`
		Name         string  `json:"name"`
		MerchantName string  `json:"merchant_name"`
		Category     struct {
			Primary string `json:"primary"`
		} `json:"personal_finance_category"`
	} `json:"transactions"`
	Accounts []struct {
		Name     string `json:"name"`
		Balances struct {
			Current float64 `json:"current"`
		} `json:"balances"`
	} `json:"accounts"`
}

// TransactionsInWindow fetches all transactions and accounts for the
// access token between start and end (inclusive calendar dates).
func (c *Client) TransactionsInWindow(ctx context.Context, accessToken string, start, end time.Time) ([]domain.Transaction, []domain.Account, error) {
	ctx, span := tracer.Start(ctx, "PlaidClient.TransactionsInWindow")
	defer span.End()
	span.SetAttributes(
		attribute.String("window.start", start.Format(dateLayout)),
		attribute.String("window.end", end.Format(dateLayout)),
	)

	var resp transactionsResponse
	err := c.doPost(ctx, "/transactions/get", map[string]any{
		"access_token": accessToken,
		"start_date":   start.Format(dateLayout),
		"end_date":     end.Format(dateLayout),
		"options": map[string]any{
			"count":                             500,
			"include_personal_finance_category": true,
		},
	}, &resp)
	if err != nil {
		return nil, nil, &domain.ErrExternalService{Service: "plaid", Err: err}
	}

	txns := make([]domain.Transaction, 0, len(resp.Transactions))
	for _, t := range resp.Transactions {
		date, err := time.Parse(dateLayout, t.Date)
		if err != nil {
			return nil, nil, &domain.ErrExternalService{Service: "plaid", Err: fmt.Errorf("malformed transaction date %q: %w", t.Date, err)}
		}
		txns = append(txns, domain.Transaction{
			Amount:       t.Amount,
			Date:         date,
			Name:         t.Name,
			MerchantName: t.MerchantName,
			Category:     t.Category.Primary,
		})
	}

	accounts := make([]domain.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, domain.Account{
			Name:           a.Name,
			CurrentBalance: a.Balances.Current,
		})
	}

	return txns, accounts, nil
}
