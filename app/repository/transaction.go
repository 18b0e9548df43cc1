package repository

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-amazon-payments/app/entity"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/provider"
)

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entity.Transaction) error {
	query := `
		INSERT INTO checkout_transactions (
			session_id, action, request_url, response, created_at
		)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		tx.SessionID,
		tx.Action,
		tx.RequestURL,
		tx.Response,
		tx.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = uint64(id)

	return nil
}

func (r *TransactionRepository) ListBySession(ctx context.Context, sessionID uint64) ([]*entity.Transaction, error) {
	query := `
		SELECT id, session_id, action, request_url, response, created_at
		FROM checkout_transactions
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Transaction, 0)
	for rows.Next() {
		item := &entity.Transaction{}
		var action sql.NullString
		if err := rows.Scan(&item.ID, &item.SessionID, &action, &item.RequestURL, &item.Response, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Action = action.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// Recorder returns a call recorder that archives provider exchanges for one
// session.
func (r *TransactionRepository) Recorder(sessionID uint64) provider.CallRecorder {
	return &sessionRecorder{repo: r, sessionID: sessionID}
}

type sessionRecorder struct {
	repo      *TransactionRepository
	sessionID uint64
}

func (s *sessionRecorder) RecordCall(ctx context.Context, requestURL string, responseBody []byte) (uint64, error) {
	tx := &entity.Transaction{
		SessionID:  s.sessionID,
		Action:     actionFromURL(requestURL),
		RequestURL: requestURL,
		Response:   string(responseBody),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return 0, err
	}
	return tx.ID, nil
}

func actionFromURL(requestURL string) string {
	idx := strings.IndexByte(requestURL, '?')
	if idx < 0 {
		return ""
	}
	values, err := url.ParseQuery(requestURL[idx+1:])
	if err != nil {
		return ""
	}
	return values.Get("Action")
}
