package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRecorderArchivesCall(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	requestURL := "https://mws.amazonservices.com/OffAmazonPayments_Sandbox/2013-01-01?AWSAccessKeyId=key&Action=Authorize"

	mock.ExpectExec("INSERT INTO checkout_transactions").
		WithArgs(uint64(5), "Authorize", requestURL, "<AuthorizeResponse/>", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(77, 1))

	id, err := repo.Recorder(5).RecordCall(context.Background(), requestURL, []byte("<AuthorizeResponse/>"))
	require.NoError(t, err)
	assert.Equal(t, uint64(77), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRecorderPropagatesError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)

	mock.ExpectExec("INSERT INTO checkout_transactions").WillReturnError(assert.AnError)

	_, err := repo.Recorder(5).RecordCall(context.Background(), "https://example.com", nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTransactionListBySession(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM checkout_transactions").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "action", "request_url", "response", "created_at"}).
			AddRow(1, 5, "GetBillingAgreementDetails", "https://example.com?Action=GetBillingAgreementDetails", "<x/>", now).
			AddRow(2, 5, nil, "https://example.com", "<y/>", now))

	items, err := repo.ListBySession(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "GetBillingAgreementDetails", items[0].Action)
	assert.Equal(t, "", items[1].Action)
}

func TestActionFromURL(t *testing.T) {
	assert.Equal(t, "Authorize", actionFromURL("https://example.com/path?Action=Authorize&SellerId=x"))
	assert.Equal(t, "", actionFromURL("https://example.com/path"))
}
