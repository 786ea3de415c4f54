package order

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

// Repository stores orders whose transport creation was attempted.
// Soft-deleted rows are invisible to every read.
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

const orderColumns = `id, session_id, status, order_id, response, payload, created_at, updated_at, deleted_at`

// GetPaginated returns one 1-based page of the session's orders with the
// given status, newest first.
func (r *Repository) GetPaginated(ctx context.Context, sessionID string, status models.OrderStatus, page, pageSize int) (*models.PaginatedOrders, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return nil, errors.NewDomainError(errors.CodeValidation, "validation failed", "page size must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	countQuery := `SELECT COUNT(*) FROM pickup_orders
	WHERE session_id = $1 AND status = $2 AND deleted_at IS NULL`
	if err := r.db.QueryRowContext(ctx, countQuery, sessionID, string(status)).Scan(&total); err != nil {
		r.logger.Error("failed to count orders", zap.Error(err), zap.String("session_id", sessionID))
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "order store unavailable", "database error")
	}

	query := `SELECT ` + orderColumns + `
	FROM pickup_orders
	WHERE session_id = $1 AND status = $2 AND deleted_at IS NULL
	ORDER BY created_at DESC, id DESC
	LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, sessionID, string(status), pageSize, (page-1)*pageSize)
	if err != nil {
		r.logger.Error("failed to list orders", zap.Error(err), zap.String("session_id", sessionID))
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "order store unavailable", "database error")
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "order store unavailable", "scan error")
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "order store unavailable", "database error")
	}

	return &models.PaginatedOrders{
		Data: orders,
		Meta: models.NewPageMeta(page, pageSize, total),
	}, nil
}

// GetByID returns the session's order id, or a not-found DomainError.
func (r *Repository) GetByID(ctx context.Context, sessionID string, id int64) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + `
	FROM pickup_orders
	WHERE id = $1 AND session_id = $2 AND deleted_at IS NULL`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, sessionID))
	if err == sql.ErrNoRows {
		return nil, errors.NewDomainError(errors.CodeNotFound, "not found", fmt.Sprintf("order %d not found", id))
	}
	if err != nil {
		r.logger.Error("failed to get order", zap.Error(err), zap.Int64("id", id))
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "order store unavailable", "database error")
	}
	return order, nil
}

// Save inserts order when its ID is zero and updates it otherwise. The
// generated id and timestamps are written back into order.
func (r *Repository) Save(ctx context.Context, order *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row *sql.Row
	if order.ID == 0 {
		query := `INSERT INTO pickup_orders (session_id, status, order_id, response, payload, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
		row = r.db.QueryRowContext(ctx, query,
			order.SessionID, string(order.Status), order.OrderID, order.Response, order.Payload, nullTime(order.DeletedAt))
	} else {
		query := `UPDATE pickup_orders SET
			status = $2, order_id = $3, response = $4, payload = $5, deleted_at = $6,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND session_id = $7
		RETURNING id, created_at, updated_at`
		row = r.db.QueryRowContext(ctx, query,
			order.ID, string(order.Status), order.OrderID, order.Response, order.Payload, nullTime(order.DeletedAt), order.SessionID)
	}

	err := row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NewDomainError(errors.CodeNotFound, "not found", fmt.Sprintf("order %d not found", order.ID))
	}
	if err != nil {
		r.logger.Error("failed to save order", zap.Error(err), zap.String("order_id", order.OrderID))
		return errors.WrapDomainError(err, errors.CodeUnavailable, "order store unavailable", "database error")
	}

	r.logger.Debug("order saved",
		zap.Int64("id", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("session_id", order.SessionID),
	)
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		order     models.Order
		status    string
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&order.ID,
		&order.SessionID,
		&status,
		&order.OrderID,
		&order.Response,
		&order.Payload,
		&order.CreatedAt,
		&order.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatus(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		order.DeletedAt = &t
	}
	return &order, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
