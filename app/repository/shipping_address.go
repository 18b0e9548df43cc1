package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-amazon-payments/app/entity"
)

type ShippingAddressRepository struct {
	db DBTX
}

func NewShippingAddressRepository(db DBTX) *ShippingAddressRepository {
	return &ShippingAddressRepository{db: db}
}

// Save stores the address of a session, replacing any previous one.
func (r *ShippingAddressRepository) Save(ctx context.Context, address *entity.ShippingAddress) error {
	query := `
		INSERT INTO shipping_addresses (
			session_id, name, line1, line2, city, state_or_region,
			postal_code, country_code, phone, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			id = LAST_INSERT_ID(id),
			name = VALUES(name),
			line1 = VALUES(line1),
			line2 = VALUES(line2),
			city = VALUES(city),
			state_or_region = VALUES(state_or_region),
			postal_code = VALUES(postal_code),
			country_code = VALUES(country_code),
			phone = VALUES(phone),
			updated_at = VALUES(updated_at)
	`

	result, err := r.db.ExecContext(ctx, query,
		address.SessionID,
		address.Name,
		address.Line1,
		nullableStringValue(address.Line2),
		address.City,
		address.StateOrRegion,
		address.PostalCode,
		address.CountryCode,
		nullableStringValue(address.Phone),
		address.CreatedAt,
		address.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	address.ID = uint64(id)

	return nil
}

func (r *ShippingAddressRepository) FindBySession(ctx context.Context, sessionID uint64) (*entity.ShippingAddress, error) {
	query := `
		SELECT id, session_id, name, line1, line2, city, state_or_region,
			postal_code, country_code, phone, created_at, updated_at
		FROM shipping_addresses
		WHERE session_id = ?
		LIMIT 1
	`

	address := &entity.ShippingAddress{}
	var line2 sql.NullString
	var phone sql.NullString
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&address.ID,
		&address.SessionID,
		&address.Name,
		&address.Line1,
		&line2,
		&address.City,
		&address.StateOrRegion,
		&address.PostalCode,
		&address.CountryCode,
		&phone,
		&address.CreatedAt,
		&address.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	address.Line2 = stringPtrFromNull(line2)
	address.Phone = stringPtrFromNull(phone)
	return address, nil
}
