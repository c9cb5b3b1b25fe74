package credential

import (
	"context"
	"time"

	"go-portal-sync/internal/portals"

	"go.mongodb.org/mongo-driver/bson"
)

// Store adapts the repository to the credential contract the portal
// adapters consume. Adapters read through it on every call, so tokens
// written by the refresh sweep are picked up immediately.
type Store struct {
	repo CredentialRepository
}

func NewStore(repo CredentialRepository) *Store {
	return &Store{repo: repo}
}

func (s *Store) Get(ctx context.Context, portal string) (*portals.Credential, error) {
	cred, err := s.repo.GetByPortal(ctx, portal)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, nil
	}

	out := &portals.Credential{
		Portal:       cred.Portal,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Username:     cred.Username,
		Password:     cred.Password,
		SessionHash:  cred.SessionHash,
		UserID:       cred.UserID,
		DealerID:     cred.DealerID,
		CNPJ:         cred.CNPJ,
	}
	if cred.ExpiresAt != nil {
		out.ExpiresAt = *cred.ExpiresAt
	}
	return out, nil
}

func (s *Store) SaveTokens(ctx context.Context, portal, accessToken, refreshToken string, expiresAt time.Time) error {
	updates := bson.M{
		"access_token": accessToken,
		"expires_at":   expiresAt,
	}
	// A refresh response without a new refresh token keeps the old one.
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return s.repo.UpdateFields(ctx, portal, updates)
}

func (s *Store) SaveSessionHash(ctx context.Context, portal, hash string) error {
	return s.repo.UpdateFields(ctx, portal, bson.M{"session_hash": hash})
}
