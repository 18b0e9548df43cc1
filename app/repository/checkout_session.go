package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-amazon-payments/app/entity"
)

var (
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrSessionAlreadyExists = errors.New("checkout session already exists")
)

const checkoutSessionColumns = `
		id, token, basket_id, billing_agreement_id, access_token,
		order_reference_id, order_number, guest_email,
		state, last_error, created_at, updated_at
`

type SessionFilter struct {
	BasketID string
	HasState bool
	State    int32
	Limit    int32
	Offset   int32
}

type CheckoutSessionRepository struct {
	db DBTX
}

func NewCheckoutSessionRepository(db DBTX) *CheckoutSessionRepository {
	return &CheckoutSessionRepository{db: db}
}

func (r *CheckoutSessionRepository) Create(ctx context.Context, session *entity.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (
			token, basket_id, billing_agreement_id, access_token,
			order_reference_id, order_number, guest_email,
			state, last_error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		session.Token,
		session.BasketID,
		session.BillingAgreementID,
		nullableStringValue(session.AccessToken),
		nullableStringValue(session.OrderReferenceID),
		nullableStringValue(session.OrderNumber),
		nullableStringValue(session.GuestEmail),
		session.State,
		nullableStringValue(session.LastError),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSessionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	session.ID = uint64(id)
	return nil
}

func (r *CheckoutSessionRepository) Update(ctx context.Context, session *entity.CheckoutSession) error {
	query := `
		UPDATE checkout_sessions SET
			billing_agreement_id = ?,
			access_token = ?,
			order_reference_id = ?,
			order_number = ?,
			guest_email = ?,
			state = ?,
			last_error = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		session.BillingAgreementID,
		nullableStringValue(session.AccessToken),
		nullableStringValue(session.OrderReferenceID),
		nullableStringValue(session.OrderNumber),
		nullableStringValue(session.GuestEmail),
		session.State,
		nullableStringValue(session.LastError),
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func (r *CheckoutSessionRepository) FindByToken(ctx context.Context, token string) (*entity.CheckoutSession, error) {
	query := `SELECT` + checkoutSessionColumns + `
		FROM checkout_sessions
		WHERE token = ?
		LIMIT 1
	`

	session := &entity.CheckoutSession{}
	if err := scanCheckoutSession(r.db.QueryRowContext(ctx, query, token), session); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *CheckoutSessionRepository) FindByBasketID(ctx context.Context, basketID string) (*entity.CheckoutSession, error) {
	query := `SELECT` + checkoutSessionColumns + `
		FROM checkout_sessions
		WHERE basket_id = ?
		LIMIT 1
	`

	session := &entity.CheckoutSession{}
	if err := scanCheckoutSession(r.db.QueryRowContext(ctx, query, basketID), session); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *CheckoutSessionRepository) List(ctx context.Context, filter SessionFilter) ([]*entity.CheckoutSession, error) {
	query := `SELECT` + checkoutSessionColumns + `
		FROM checkout_sessions
	`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if strings.TrimSpace(filter.BasketID) != "" {
		conditions = append(conditions, "basket_id = ?")
		args = append(args, filter.BasketID)
	}
	if filter.HasState {
		conditions = append(conditions, "state = ?")
		args = append(args, filter.State)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*entity.CheckoutSession, 0)
	for rows.Next() {
		item := &entity.CheckoutSession{}
		if err := scanCheckoutSession(rows, item); err != nil {
			return nil, err
		}
		sessions = append(sessions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckoutSession(scan rowScanner, session *entity.CheckoutSession) error {
	var accessToken sql.NullString
	var orderReferenceID sql.NullString
	var orderNumber sql.NullString
	var guestEmail sql.NullString
	var lastError sql.NullString

	err := scan.Scan(
		&session.ID,
		&session.Token,
		&session.BasketID,
		&session.BillingAgreementID,
		&accessToken,
		&orderReferenceID,
		&orderNumber,
		&guestEmail,
		&session.State,
		&lastError,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return err
	}

	session.AccessToken = stringPtrFromNull(accessToken)
	session.OrderReferenceID = stringPtrFromNull(orderReferenceID)
	session.OrderNumber = stringPtrFromNull(orderNumber)
	session.GuestEmail = stringPtrFromNull(guestEmail)
	session.LastError = stringPtrFromNull(lastError)

	return nil
}
