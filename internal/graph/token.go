package graph

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/eternisai/assignment-relay/internal/errors"
	"github.com/eternisai/assignment-relay/internal/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenProvider exchanges the app registration's client credentials for a
// Graph bearer token. Tokens are not cached; every call performs a fresh
// exchange.
type TokenProvider struct {
	config     clientcredentials.Config
	httpClient *http.Client
	logger     *logger.Logger
}

// TokenProviderInput holds the credentials needed for the exchange.
type TokenProviderInput struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	HTTPClient   *http.Client
}

// NewTokenProvider creates a token provider for a single tenant.
func NewTokenProvider(input TokenProviderInput, logger *logger.Logger) *TokenProvider {
	httpClient := input.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &TokenProvider{
		config: clientcredentials.Config{
			ClientID:     input.ClientID,
			ClientSecret: input.ClientSecret,
			TokenURL:     input.TokenURL,
			Scopes:       []string{input.Scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		logger:     logger.WithComponent("graph_token"),
	}
}

// AcquireToken performs the client-credentials grant and returns the access
// token. Transport failures, non-2xx responses and responses without an
// access token all surface as *errors.AuthError.
func (p *TokenProvider) AcquireToken(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			p.logger.WithContext(ctx).Error("token endpoint rejected client credentials",
				slog.Int("status_code", retrieveErr.Response.StatusCode),
				slog.String("error_code", retrieveErr.ErrorCode))
		}
		return "", &apperrors.AuthError{Err: err}
	}

	if token.AccessToken == "" {
		return "", &apperrors.AuthError{Err: errors.New("response missing access_token")}
	}

	p.logger.WithContext(ctx).Debug("acquired graph token",
		slog.Time("expiry", token.Expiry))

	return token.AccessToken, nil
}
