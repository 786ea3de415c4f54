package session

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"hubon-pickup/internal/models"
	"hubon-pickup/pkg/errors"

	"go.uber.org/zap"
)

const queryTimeout = 2 * time.Second

// DBClient interface for database operations
type DBClient interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository reads the Shopify session table. It never writes to it.
type Repository struct {
	db     DBClient
	logger *zap.Logger
}

func NewRepository(db DBClient, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FindByShop resolves a myshopify domain, or a session id passed in its
// place, to the session id.
func (r *Repository) FindByShop(ctx context.Context, shopOrID string) (string, error) {
	shopOrID = strings.TrimSpace(shopOrID)
	if shopOrID == "" {
		return "", errors.NewDomainError(errors.CodeNotFound, "not found", "shop is required")
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id FROM "Session"
	WHERE shop = $1 OR id = $1
	ORDER BY (id = $1) DESC, "isOnline" ASC
	LIMIT 1`

	var sessionID string
	err := r.db.QueryRowContext(ctx, query, shopOrID).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", errors.NewDomainError(errors.CodeNotFound, "not found", "no session for shop "+shopOrID)
	}
	if err != nil {
		r.logger.Error("failed to find session", zap.Error(err), zap.String("shop", shopOrID))
		return "", errors.WrapDomainError(err, errors.CodeUnavailable, "session store unavailable", "database error")
	}
	return sessionID, nil
}

// GetShop loads the shop domain and offline access token stored for
// sessionID.
func (r *Repository) GetShop(ctx context.Context, sessionID string) (*models.ShopSession, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id, shop, "accessToken" FROM "Session" WHERE id = $1`

	var (
		shop  models.ShopSession
		token sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&shop.ID, &shop.Shop, &token)
	if err == sql.ErrNoRows {
		return nil, errors.NewDomainError(errors.CodeSessionMissing, "session missing", "no session "+sessionID)
	}
	if err != nil {
		r.logger.Error("failed to load session", zap.Error(err), zap.String("session_id", sessionID))
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "session store unavailable", "database error")
	}
	if !token.Valid || token.String == "" {
		return nil, errors.NewDomainError(errors.CodeSessionMissing, "session missing", "session has no access token")
	}
	shop.AccessToken = token.String
	return &shop, nil
}
