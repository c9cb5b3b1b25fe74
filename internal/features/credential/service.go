package credential

import (
	"context"
	"fmt"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/metrics"
	"go-portal-sync/internal/portals"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// refreshMargins is how long before expiry a token is refreshed. iCarros
// issues five-minute tokens, so its margin is tight; the others issue
// six-hour tokens.
var refreshMargins = map[string]time.Duration{
	portals.PortalOLX:           time.Hour,
	portals.PortalMercadoLivre:  time.Hour,
	portals.PortalICarros:       time.Minute,
	portals.PortalWebMotorsREST: 5 * time.Minute,
}

type CredentialService interface {
	GetStatuses(ctx context.Context) ([]Status, error)
	SaveCredential(ctx context.Context, cred *PortalCredential) error

	AuthorizationURL(ctx context.Context, portal string) (string, error)
	HandleCallback(ctx context.Context, portal, code string) error

	RefreshPortal(ctx context.Context, portal string) error
	RefreshAllDue(ctx context.Context)
}

type CredentialServiceImpl struct {
	repo CredentialRepository
	cfg  *config.Config
	log  *zap.Logger

	group singleflight.Group
}

func NewCredentialService(repo CredentialRepository, cfg *config.Config, log *zap.Logger) CredentialService {
	return &CredentialServiceImpl{
		repo: repo,
		cfg:  cfg,
		log:  log,
	}
}

func (s *CredentialServiceImpl) GetStatuses(ctx context.Context) ([]Status, error) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(creds))
	for _, cred := range creds {
		status := Status{
			Portal:     cred.Portal,
			Configured: true,
			HasToken:   cred.AccessToken != "",
			HasRefresh: cred.RefreshToken != "",
			HasSession: cred.SessionHash != "",
			ExpiresAt:  cred.ExpiresAt,
		}
		status.NeedsRefresh = shouldRefresh(&cred)
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *CredentialServiceImpl) SaveCredential(ctx context.Context, cred *PortalCredential) error {
	if cred.Portal == "" {
		return fmt.Errorf("portal is required")
	}
	return s.repo.Upsert(ctx, cred)
}

// shouldRefresh reports whether a token-bearing credential is inside its
// refresh margin. A token with no recorded expiry is treated as due.
func shouldRefresh(cred *PortalCredential) bool {
	margin, tokenBased := refreshMargins[cred.Portal]
	if !tokenBased || cred.AccessToken == "" {
		return false
	}
	if cred.ExpiresAt == nil {
		return true
	}
	return time.Until(*cred.ExpiresAt) < margin
}

// oauthConfig builds the code-flow config for OLX and Mercado Livre.
func (s *CredentialServiceImpl) oauthConfig(portal string) (*oauth2.Config, error) {
	switch portal {
	case portals.PortalOLX:
		return &oauth2.Config{
			ClientID:     s.cfg.OLX.ClientID,
			ClientSecret: s.cfg.OLX.ClientSecret,
			RedirectURL:  s.cfg.OLX.RedirectURI,
			Scopes:       []string{"autoupload", "basic_user_info"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  s.cfg.OLX.AuthURL + "/oauth/authorize",
				TokenURL: s.cfg.OLX.AuthURL + "/oauth/token",
			},
		}, nil
	case portals.PortalMercadoLivre:
		return &oauth2.Config{
			ClientID:     s.cfg.MercadoLivre.AppID,
			ClientSecret: s.cfg.MercadoLivre.ClientSecret,
			RedirectURL:  s.cfg.MercadoLivre.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  s.cfg.MercadoLivre.AuthURL + "/authorization",
				TokenURL: s.cfg.MercadoLivre.APIURL + "/oauth/token",
			},
		}, nil
	}
	return nil, fmt.Errorf("portal %s does not use the authorization code flow", portal)
}

// AuthorizationURL returns the consent URL for code-flow portals. Mercado
// Livre requires PKCE; the verifier is kept on the credential document until
// the callback exchanges it.
func (s *CredentialServiceImpl) AuthorizationURL(ctx context.Context, portal string) (string, error) {
	conf, err := s.oauthConfig(portal)
	if err != nil {
		return "", err
	}

	state := portal + "-" + uuid.NewString()

	if portal == portals.PortalMercadoLivre {
		verifier := oauth2.GenerateVerifier()
		if err := s.repo.UpdateFields(ctx, portal, bson.M{"pkce_verifier": verifier}); err != nil {
			return "", err
		}
		return conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
	}
	return conf.AuthCodeURL(state), nil
}

// HandleCallback exchanges an authorization code for tokens.
func (s *CredentialServiceImpl) HandleCallback(ctx context.Context, portal, code string) error {
	conf, err := s.oauthConfig(portal)
	if err != nil {
		return err
	}

	var opts []oauth2.AuthCodeOption
	if portal == portals.PortalMercadoLivre {
		cred, err := s.repo.GetByPortal(ctx, portal)
		if err != nil {
			return err
		}
		if cred == nil || cred.PKCEVerifier == "" {
			return fmt.Errorf("no pending authorization for %s; request a new authorization url", portal)
		}
		opts = append(opts, oauth2.VerifierOption(cred.PKCEVerifier))
	}

	token, err := conf.Exchange(ctx, code, opts...)
	if err != nil {
		return fmt.Errorf("token exchange failed for %s: %w", portal, err)
	}

	updates := bson.M{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expires_at":    token.Expiry,
		"pkce_verifier": "",
		"client_id":     conf.ClientID,
		"client_secret": conf.ClientSecret,
	}
	// Mercado Livre returns the seller id alongside the token; it scopes
	// question and inventory queries later.
	if userID := token.Extra("user_id"); userID != nil {
		updates["user_id"] = fmt.Sprintf("%v", userID)
	}

	if err := s.repo.UpdateFields(ctx, portal, updates); err != nil {
		return err
	}

	s.log.Info("portal authorization completed", zap.String("portal", portal))
	return nil
}

// RefreshPortal refreshes one portal's token. Concurrent callers for the
// same portal are collapsed into a single refresh.
func (s *CredentialServiceImpl) RefreshPortal(ctx context.Context, portal string) error {
	_, err, _ := s.group.Do(portal, func() (interface{}, error) {
		err := s.refresh(ctx, portal)
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.TokenRefreshes.WithLabelValues(portal, result).Inc()
		return nil, err
	})
	return err
}

func (s *CredentialServiceImpl) refresh(ctx context.Context, portal string) error {
	cred, err := s.repo.GetByPortal(ctx, portal)
	if err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("no credentials stored for %s", portal)
	}

	var token *oauth2.Token
	switch portal {
	case portals.PortalOLX, portals.PortalMercadoLivre:
		token, err = s.refreshWithRefreshToken(ctx, portal, cred)
	case portals.PortalICarros:
		token, err = s.refreshICarros(ctx, cred)
	case portals.PortalWebMotorsREST:
		token, err = s.refreshWebMotorsREST(ctx)
	default:
		return fmt.Errorf("portal %s has no refreshable token", portal)
	}
	if err != nil {
		// The stale token stays in place; calls keep working until the
		// portal rejects it.
		s.log.Error("token refresh failed", zap.String("portal", portal), zap.Error(err))
		return err
	}

	updates := bson.M{
		"access_token": token.AccessToken,
		"expires_at":   token.Expiry,
	}
	if token.RefreshToken != "" {
		updates["refresh_token"] = token.RefreshToken
	}
	if err := s.repo.UpdateFields(ctx, portal, updates); err != nil {
		return err
	}

	s.log.Info("token refreshed", zap.String("portal", portal), zap.Time("expires_at", token.Expiry))
	return nil
}

func (s *CredentialServiceImpl) refreshWithRefreshToken(ctx context.Context, portal string, cred *PortalCredential) (*oauth2.Token, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token stored for %s; re-run authorization", portal)
	}
	conf, err := s.oauthConfig(portal)
	if err != nil {
		return nil, err
	}

	// An already-expired Expiry forces TokenSource to hit the token endpoint.
	stale := &oauth2.Token{RefreshToken: cred.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	return conf.TokenSource(ctx, stale).Token()
}

// refreshICarros prefers the refresh grant and falls back to the password
// grant the Keycloak realm uses for the initial login.
func (s *CredentialServiceImpl) refreshICarros(ctx context.Context, cred *PortalCredential) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID:     s.cfg.ICarros.ClientID,
		ClientSecret: s.cfg.ICarros.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: s.cfg.ICarros.AuthURL + "/token",
		},
	}

	if cred.RefreshToken != "" {
		stale := &oauth2.Token{RefreshToken: cred.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
		if token, err := conf.TokenSource(ctx, stale).Token(); err == nil {
			return token, nil
		}
		s.log.Warn("icarros refresh grant failed, retrying with password grant")
	}

	if cred.Username == "" || cred.Password == "" {
		return nil, fmt.Errorf("icarros login not configured")
	}
	return conf.PasswordCredentialsToken(ctx, cred.Username, cred.Password)
}

func (s *CredentialServiceImpl) refreshWebMotorsREST(ctx context.Context) (*oauth2.Token, error) {
	conf := &clientcredentials.Config{
		ClientID:     s.cfg.WebMotors.ClientID,
		ClientSecret: s.cfg.WebMotors.ClientSecret,
		TokenURL:     s.cfg.WebMotors.RESTURL() + "/oauth/v1/access-token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return conf.Token(ctx)
}

// RefreshAllDue sweeps all stored credentials and refreshes the ones inside
// their margin. Called from the scheduler; failures are logged per portal
// and do not stop the sweep.
func (s *CredentialServiceImpl) RefreshAllDue(ctx context.Context) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		s.log.Error("failed to list credentials for refresh sweep", zap.Error(err))
		return
	}

	for i := range creds {
		cred := &creds[i]
		if !shouldRefresh(cred) {
			continue
		}
		if err := s.RefreshPortal(ctx, cred.Portal); err != nil {
			s.log.Warn("scheduled refresh failed", zap.String("portal", cred.Portal), zap.Error(err))
		}
	}
}
