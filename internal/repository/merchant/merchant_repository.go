package merchant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hubon-pickup/internal/models"
	"hubon-pickup/pkg/errors"

	"go.uber.org/zap"
)

const queryTimeout = 2 * time.Second

// DBClient interface for database operations
type DBClient interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository stores the link between a Shopify session and a HubOn account.
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

const selectColumns = `id, session_id, api_key,
		default_product_id, default_product_variant_id,
		additional_product_id, additional_product_variant_id,
		threshold_price, shipping_price`

// GetBySessionID returns the link for sessionID or a not-found DomainError.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (*models.MerchantLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + selectColumns + `
	FROM hubon_accounts
	WHERE session_id = $1`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return nil, errors.NewDomainError(errors.CodeNotFound, "not found", fmt.Sprintf("no hubon account for session %s", sessionID))
	}
	if err != nil {
		r.logger.Error("failed to get hubon account", zap.Error(err), zap.String("session_id", sessionID))
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "merchant store unavailable", "database error")
	}
	return link, nil
}

// Upsert creates or replaces the link keyed by session id. Nil catalog fields
// keep their stored value.
func (r *Repository) Upsert(ctx context.Context, link *models.MerchantLink) (*models.MerchantLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `INSERT INTO hubon_accounts (
		session_id, api_key,
		default_product_id, default_product_variant_id,
		additional_product_id, additional_product_variant_id,
		threshold_price, shipping_price
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (session_id) DO UPDATE SET
		api_key = EXCLUDED.api_key,
		default_product_id = COALESCE(EXCLUDED.default_product_id, hubon_accounts.default_product_id),
		default_product_variant_id = COALESCE(EXCLUDED.default_product_variant_id, hubon_accounts.default_product_variant_id),
		additional_product_id = COALESCE(EXCLUDED.additional_product_id, hubon_accounts.additional_product_id),
		additional_product_variant_id = COALESCE(EXCLUDED.additional_product_variant_id, hubon_accounts.additional_product_variant_id),
		threshold_price = COALESCE(EXCLUDED.threshold_price, hubon_accounts.threshold_price),
		shipping_price = COALESCE(EXCLUDED.shipping_price, hubon_accounts.shipping_price),
		updated_at = CURRENT_TIMESTAMP
	RETURNING ` + selectColumns

	stored, err := scanLink(r.db.QueryRowContext(ctx, query,
		link.SessionID,
		link.APIKey,
		nullString(link.DefaultProductID),
		nullString(link.DefaultProductVariantID),
		nullString(link.AdditionalProductID),
		nullString(link.AdditionalProductVariantID),
		nullString(link.ThresholdPrice),
		nullString(link.ShippingPrice),
	))
	if err != nil {
		r.logger.Error("failed to upsert hubon account", zap.Error(err), zap.String("session_id", link.SessionID))
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "merchant store unavailable", "database error")
	}

	r.logger.Debug("hubon account upserted",
		zap.Int64("id", stored.ID),
		zap.String("session_id", stored.SessionID),
	)
	return stored, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row scanner) (*models.MerchantLink, error) {
	var (
		link                       models.MerchantLink
		defaultProductID           sql.NullString
		defaultProductVariantID    sql.NullString
		additionalProductID        sql.NullString
		additionalProductVariantID sql.NullString
		thresholdPrice             sql.NullString
		shippingPrice              sql.NullString
	)

	err := row.Scan(
		&link.ID,
		&link.SessionID,
		&link.APIKey,
		&defaultProductID,
		&defaultProductVariantID,
		&additionalProductID,
		&additionalProductVariantID,
		&thresholdPrice,
		&shippingPrice,
	)
	if err != nil {
		return nil, err
	}

	link.DefaultProductID = stringPtr(defaultProductID)
	link.DefaultProductVariantID = stringPtr(defaultProductVariantID)
	link.AdditionalProductID = stringPtr(additionalProductID)
	link.AdditionalProductVariantID = stringPtr(additionalProductVariantID)
	link.ThresholdPrice = stringPtr(thresholdPrice)
	link.ShippingPrice = stringPtr(shippingPrice)
	return &link, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
