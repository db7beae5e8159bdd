// Package mx provides a client for an MX-compatible account aggregation
// provider: user and member lifecycle, connect-widget URLs, institution
// search and member connection status.
package mx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("mx")

const acceptHeader = "application/vnd.mx.api.v1+json"

// Client wraps HTTP calls to the MX-compatible Platform API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates an MX client for the given environment
// (integration or production).
func NewClient(httpClient *http.Client, environment, clientID, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    hostFor(environment),
		clientID:   clientID,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

func hostFor(environment string) string {
	if environment == "production" {
		return "https://api.mx.com"
	}
	return "https://int-api.mx.com"
}

// WithBaseURL points the client at a different host. Used when the
// provider sits behind a gateway and in tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// doRequest executes an authenticated request with retry and circuit
// breaker, decoding the JSON response into out (out may be nil).
func (c *Client) doRequest(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return err
		}
	}

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
			if err != nil {
				return err
			}
			req.SetBasicAuth(c.clientID, c.apiKey)
			req.Header.Set("Accept", acceptHeader)
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				var provider struct {
					Error struct {
						Message string `json:"message"`
					} `json:"error"`
				}
				if json.Unmarshal(raw, &provider) == nil && provider.Error.Message != "" {
					return fmt.Errorf("%s (status %d)", provider.Error.Message, resp.StatusCode)
				}
				return fmt.Errorf("mx API returned status %d", resp.StatusCode)
			}

			if out == nil || len(raw) == 0 {
				return nil
			}
			return json.Unmarshal(raw, out)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return nil, nil
	})

	if err != nil {
		c.logger.Error("mx: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return err
}

// CreateUser creates a provider-side user and returns its GUID.
func (c *Client) CreateUser(ctx context.Context, metadata string) (string, error) {
	ctx, span := tracer.Start(ctx, "MXClient.CreateUser")
	defer span.End()

	var resp struct {
		User struct {
			GUID string `json:"guid"`
		} `json:"user"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/users", map[string]any{
		"user": map[string]string{"metadata": metadata},
	}, &resp)
	if err != nil {
		return "", &domain.ErrExternalService{Service: "mx", Err: err}
	}
	return resp.User.GUID, nil
}

// ListUsers returns all provider-side users.
func (c *Client) ListUsers(ctx context.Context) ([]domain.AggregationUser, error) {
	ctx, span := tracer.Start(ctx, "MXClient.ListUsers")
	defer span.End()

	var resp struct {
		Users []struct {
			GUID     string `json:"guid"`
			Metadata string `json:"metadata"`
		} `json:"users"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/users", nil, &resp); err != nil {
		return nil, &domain.ErrExternalService{Service: "mx", Err: err}
	}

	users := make([]domain.AggregationUser, 0, len(resp.Users))
	for _, u := range resp.Users {
		users = append(users, domain.AggregationUser{GUID: u.GUID, Metadata: u.Metadata})
	}
	return users, nil
}

// DeleteUser removes a provider-side user and everything attached to it.
func (c *Client) DeleteUser(ctx context.Context, userGUID string) error {
	ctx, span := tracer.Start(ctx, "MXClient.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.guid", userGUID))

	if err := c.doRequest(ctx, http.MethodDelete, "/users/"+userGUID, nil, nil); err != nil {
		return &domain.ErrExternalService{Service: "mx", Err: err}
	}
	return nil
}

// ConnectWidgetURL requests a connect-widget URL for the user. When
// currentMemberGUID is set the widget resumes that member's connection.
func (c *Client) ConnectWidgetURL(ctx context.Context, userGUID, currentMemberGUID string) (string, error) {
	ctx, span := tracer.Start(ctx, "MXClient.ConnectWidgetURL")
	defer span.End()
	span.SetAttributes(attribute.String("user.guid", userGUID))

	widget := map[string]any{
		"widget_type":          "connect_widget",
		"is_mobile_webview":    false,
		"mode":                 "verification",
		"ui_message_version":   4,
		"include_transactions": true,
	}
	if currentMemberGUID != "" {
		widget["current_member_guid"] = currentMemberGUID
	}

	var resp struct {
		WidgetURL struct {
			URL string `json:"url"`
		} `json:"widget_url"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/users/"+userGUID+"/widget_urls", map[string]any{
		"widget_url": widget,
	}, &resp)
	if err != nil {
		return "", &domain.ErrExternalService{Service: "mx", Err: err}
	}
	return resp.WidgetURL.URL, nil
}

// StartAggregation submits an asynchronous aggregation request for the
// member. Completion is observed via MemberStatus.
func (c *Client) StartAggregation(ctx context.Context, userGUID, memberGUID string) error {
	ctx, span := tracer.Start(ctx, "MXClient.StartAggregation")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.guid", userGUID),
		attribute.String("member.guid", memberGUID),
	)

	path := fmt.Sprintf("/users/%s/members/%s/aggregate", userGUID, memberGUID)
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil); err != nil {
		return &domain.ErrExternalService{Service: "mx", Err: err}
	}
	return nil
}

// MemberStatus reads the member's current connection status.
func (c *Client) MemberStatus(ctx context.Context, userGUID, memberGUID string) (domain.AggregationStatus, error) {
	ctx, span := tracer.Start(ctx, "MXClient.MemberStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.guid", userGUID),
		attribute.String("member.guid", memberGUID),
	)

	var resp struct {
		Member struct {
			ConnectionStatus string `json:"connection_status"`
		} `json:"member"`
	}
	path := fmt.Sprintf("/users/%s/members/%s/status", userGUID, memberGUID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", &domain.ErrExternalService{Service: "mx", Err: err}
	}
	return domain.ParseAggregationStatus(resp.Member.ConnectionStatus), nil
}

// SearchInstitutions looks up institutions by name.
func (c *Client) SearchInstitutions(ctx context.Context, query string) ([]domain.Institution, error) {
	ctx, span := tracer.Start(ctx, "MXClient.SearchInstitutions")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	var resp struct {
		Institutions []struct {
			Code string `json:"code"`
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"institutions"`
	}
	path := "/institutions?name=" + url.QueryEscape(query)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &domain.ErrExternalService{Service: "mx", Err: err}
	}

	insts := make([]domain.Institution, 0, len(resp.Institutions))
	for _, i := range resp.Institutions {
		insts = append(insts, domain.Institution{Code: i.Code, Name: i.Name, URL: i.URL})
	}
	return insts, nil
}
