package guide

import (
	"context"
	"database/sql"
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

// Repository stores onboarding guide progress per session.
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

// GetBySessionID returns the stored progress, or a not-found DomainError when
// the merchant has not started the guide.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (*models.Guide, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id, session_id, is_carrier, is_button_buy, is_pickup_widget
	FROM onboarding_guides
	WHERE session_id = $1`

	var guide models.Guide
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&guide.ID,
		&guide.SessionID,
		&guide.IsCarrier,
		&guide.IsButtonBuy,
		&guide.IsPickupWidget,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewDomainError(errors.CodeNotFound, "not found", "no guide for session "+sessionID)
	}
	if err != nil {
		r.logger.Error("failed to get guide", zap.Error(err), zap.String("session_id", sessionID))
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "guide store unavailable", "database error")
	}
	return &guide, nil
}

// Upsert applies update to the session's guide, creating it with unset steps
// false. Nil steps keep their stored value.
func (r *Repository) Upsert(ctx context.Context, sessionID string, update models.GuideUpdate) (*models.Guide, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `INSERT INTO onboarding_guides (session_id, is_carrier, is_button_buy, is_pickup_widget)
	VALUES ($1, COALESCE($2, FALSE), COALESCE($3, FALSE), COALESCE($4, FALSE))
	ON CONFLICT (session_id) DO UPDATE SET
		is_carrier = COALESCE($2, onboarding_guides.is_carrier),
		is_button_buy = COALESCE($3, onboarding_guides.is_button_buy),
		is_pickup_widget = COALESCE($4, onboarding_guides.is_pickup_widget)
	RETURNING id, session_id, is_carrier, is_button_buy, is_pickup_widget`

	var guide models.Guide
	err := r.db.QueryRowContext(ctx, query,
		sessionID,
		nullBool(update.IsCarrier),
		nullBool(update.IsButtonBuy),
		nullBool(update.IsPickupWidget),
	).Scan(
		&guide.ID,
		&guide.SessionID,
		&guide.IsCarrier,
		&guide.IsButtonBuy,
		&guide.IsPickupWidget,
	)
	if err != nil {
		r.logger.Error("failed to upsert guide", zap.Error(err), zap.String("session_id", sessionID))
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "guide store unavailable", "database error")
	}
	return &guide, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
