package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/entity"
)

var (
	ErrAuthAttemptNotFound      = errors.New("authorization attempt not found")
	ErrAuthAttemptAlreadyExists = errors.New("authorization attempt already exists")
)

type AuthAttemptRepository struct {
	db DBTX
}

func NewAuthAttemptRepository(db DBTX) *AuthAttemptRepository {
	return &AuthAttemptRepository{db: db}
}

func (r *AuthAttemptRepository) Create(ctx context.Context, attempt *entity.AuthAttempt) error {
	query := `
		INSERT INTO authorization_attempts (
			session_id, reference_id, authorization_id, transaction_id,
			state, reason_code, amount, captured_amount, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		attempt.SessionID,
		nullableStringValue(attempt.ReferenceID),
		nullableStringValue(attempt.AuthorizationID),
		nullableUint64Value(attempt.TransactionID),
		nullableStringValue(attempt.State),
		nullableStringValue(attempt.ReasonCode),
		attempt.Amount.StringFixed(2),
		nullableDecimalValue(attempt.CapturedAmount),
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	attempt.ID = uint64(id)

	return nil
}

func (r *AuthAttemptRepository) Update(ctx context.Context, attempt *entity.AuthAttempt) error {
	query := `
		UPDATE authorization_attempts SET
			reference_id = ?,
			authorization_id = ?,
			transaction_id = ?,
			state = ?,
			reason_code = ?,
			captured_amount = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(attempt.ReferenceID),
		nullableStringValue(attempt.AuthorizationID),
		nullableUint64Value(attempt.TransactionID),
		nullableStringValue(attempt.State),
		nullableStringValue(attempt.ReasonCode),
		nullableDecimalValue(attempt.CapturedAmount),
		attempt.UpdatedAt,
		attempt.ID,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrAuthAttemptAlreadyExists
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAuthAttemptNotFound
	}

	return nil
}

func (r *AuthAttemptRepository) ListBySession(ctx context.Context, sessionID uint64) ([]*entity.AuthAttempt, error) {
	query := `
		SELECT id, session_id, reference_id, authorization_id, transaction_id,
			state, reason_code, amount, captured_amount, created_at, updated_at
		FROM authorization_attempts
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*entity.AuthAttempt, 0)
	for rows.Next() {
		item := &entity.AuthAttempt{}
		var referenceID sql.NullString
		var authorizationID sql.NullString
		var transactionID sql.NullInt64
		var state sql.NullString
		var reasonCode sql.NullString
		var capturedAmount decimal.NullDecimal

		if err := rows.Scan(
			&item.ID,
			&item.SessionID,
			&referenceID,
			&authorizationID,
			&transactionID,
			&state,
			&reasonCode,
			&item.Amount,
			&capturedAmount,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}

		item.ReferenceID = stringPtrFromNull(referenceID)
		item.AuthorizationID = stringPtrFromNull(authorizationID)
		item.TransactionID = uint64PtrFromNull(transactionID)
		item.State = stringPtrFromNull(state)
		item.ReasonCode = stringPtrFromNull(reasonCode)
		item.CapturedAmount = decimalPtrFromNull(capturedAmount)
		attempts = append(attempts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attempts, nil
}
