package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRunInTransaction(t *testing.T) {
	errWrite := errors.New("insert task failed")
	errDriver := errors.New("connection reset")

	tests := []struct {
		name    string
		expect  func(mock sqlmock.Sqlmock)
		fn      TxFn
		wantErr error
		wantMsg []string
	}{
		{
			name: "commits when fn succeeds",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit()
			},
			fn: func(context.Context, *sql.Tx) error { return nil },
		},
		{
			name: "rolls back and returns fn error unchanged",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			fn:      func(context.Context, *sql.Tx) error { return errWrite },
			wantErr: errWrite,
		},
		{
			name: "begin failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errDriver)
			},
			fn:      func(context.Context, *sql.Tx) error { return nil },
			wantErr: ErrTransactionFailed,
			wantMsg: []string{"failed to begin transaction", "connection reset"},
		},
		{
			name: "commit failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit().WillReturnError(errDriver)
			},
			fn:      func(context.Context, *sql.Tx) error { return nil },
			wantErr: ErrTransactionFailed,
			wantMsg: []string{"failed to commit transaction"},
		},
		{
			name: "rollback failure keeps fn error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback().WillReturnError(errDriver)
			},
			fn:      func(context.Context, *sql.Tx) error { return errWrite },
			wantErr: errWrite,
			wantMsg: []string{"error rolling back transaction", "connection reset"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.expect(mock)

			err := RunInTransaction(context.Background(), db, tt.fn)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			for _, msg := range tt.wantMsg {
				assert.Contains(t, err.Error(), msg)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunInTransaction_PanicRollsBackAndRepanics(t *testing.T) {
	for _, rollbackErr := range []error{nil, errors.New("rollback failed")} {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(rollbackErr)

		assert.PanicsWithValue(t, "generator exploded", func() {
			_ = RunInTransaction(context.Background(), db, func(context.Context, *sql.Tx) error {
				panic("generator exploded")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestRunInTransaction_NestedCallJoinsActiveTransaction(t *testing.T) {
	db, mock := newMockDB(t)

	// A single begin/commit pair proves the inner call did not open its own transaction
	mock.ExpectBegin()
	mock.ExpectCommit()

	var outerTx, innerTx *sql.Tx
	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		outerTx = tx
		return RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			innerTx = tx
			return nil
		})
	})
	require.NoError(t, err)
	assert.Same(t, outerTx, innerTx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_NestedErrorRollsBackOuter(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	innerErr := errors.New("inner failed")
	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			return innerErr
		})
	})
	assert.ErrorIs(t, err, innerErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn(t *testing.T) {
	db, mock := newMockDB(t)

	t.Run("without transaction returns db", func(t *testing.T) {
		assert.Equal(t, DBTX(db), Conn(context.Background(), db))
	})

	t.Run("with transaction returns tx", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			assert.Equal(t, DBTX(tx), Conn(ctx, db))
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLTransactor(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	var transactor Transactor = NewSQLTransactor(db)
	err := transactor.RunInTransaction(context.Background(), func(ctx context.Context) error {
		_, ok := TxFromContext(ctx)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
