package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-amazon-payments/app/entity"
)

type PaymentSourceRepository struct {
	db DBTX
}

func NewPaymentSourceRepository(db DBTX) *PaymentSourceRepository {
	return &PaymentSourceRepository{db: db}
}

func (r *PaymentSourceRepository) Create(ctx context.Context, source *entity.PaymentSource) error {
	query := `
		INSERT INTO payment_sources (
			session_id, source_type, currency, amount_allocated, amount_debited, reference, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		source.SessionID,
		source.SourceType,
		source.Currency,
		source.AmountAllocated.StringFixed(2),
		source.AmountDebited.StringFixed(2),
		source.Reference,
		source.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	source.ID = uint64(id)

	return nil
}

func (r *PaymentSourceRepository) ListBySession(ctx context.Context, sessionID uint64) ([]*entity.PaymentSource, error) {
	query := `
		SELECT id, session_id, source_type, currency, amount_allocated, amount_debited, reference, created_at
		FROM payment_sources
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := make([]*entity.PaymentSource, 0)
	for rows.Next() {
		item := &entity.PaymentSource{}
		if err := rows.Scan(
			&item.ID,
			&item.SessionID,
			&item.SourceType,
			&item.Currency,
			&item.AmountAllocated,
			&item.AmountDebited,
			&item.Reference,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		sources = append(sources, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sources, nil
}
