// OAuth2 client-credentials-backed authorization hook: the custom
// policy check referenced by agent.Authorizer.Custom (spec §4.8 step
// 4, "consult an out-of-process policy service"). Generalized from the
// token-exchange calls in internal/relay/auth_web.go's OAuth handlers
// (POST for a token, then call an API with it as a bearer credential)
// from a user-facing authorization-code login flow to a machine-to-
// machine client-credentials policy check, using the ecosystem
// golang.org/x/oauth2 client instead of hand-rolled token-exchange HTTP
// calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/docflow/docflow/internal/agent"
	"github.com/docflow/docflow/internal/config"
	"github.com/docflow/docflow/internal/domain"
)

// NewOAuth2Hook returns an agent.CustomHook that asks an external policy
// service to approve (action, actor), authenticating to it via OAuth2
// client credentials. Returns nil if cfg has no OAuthTokenURL configured
// (the hook becomes a no-op, and Authorizer falls back to the role
// matrix alone).
func NewOAuth2Hook(cfg *config.Config, policyURL string) agent.CustomHook {
	if cfg.OAuthTokenURL == "" {
		return nil
	}
	ccConfig := clientcredentials.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		TokenURL:     cfg.OAuthTokenURL,
	}

	return func(ctx context.Context, action agent.Action, actor string) error {
		client := ccConfig.Client(ctx)

		body, _ := json.Marshal(map[string]string{"action": string(action), "actor": actor})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, policyURL, bytes.NewReader(body))
		if err != nil {
			return domain.NewError(domain.ErrInternal, "building policy request failed").WithDetail("cause", err.Error())
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return domain.NewError(domain.ErrTransientIO, "policy service unreachable").WithDetail("cause", err.Error())
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusForbidden {
			return domain.NewError(domain.ErrForbidden, "policy service denied action")
		}
		if resp.StatusCode != http.StatusOK {
			return domain.NewError(domain.ErrInternal, fmt.Sprintf("policy service returned %d", resp.StatusCode))
		}
		return nil
	}
}
