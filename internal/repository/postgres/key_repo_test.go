package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/model"
)

func TestKeyRepo_PutGetDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewKeyRepo(db)
	ctx := context.Background()
	uid := model.UID{1, 2, 3}
	wrapped := []byte("wrapped-bytes")

	mock.ExpectExec(`INSERT INTO keys \(uid, wrapped_key\) VALUES \(\$1, \$2\)`).
		WithArgs(uid[:], wrapped).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Put(ctx, uid, wrapped))

	mock.ExpectQuery(`SELECT wrapped_key FROM keys WHERE uid=\$1`).
		WithArgs(uid[:]).
		WillReturnRows(pgxmock.NewRows([]string{"wrapped_key"}).AddRow(wrapped))
	got, err := r.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, wrapped, got)

	mock.ExpectExec(`DELETE FROM keys WHERE uid=\$1`).
		WithArgs(uid[:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, uid))
}

func TestKeyRepo_GetNotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewKeyRepo(db)
	ctx := context.Background()
	uid := model.UID{9}

	mock.ExpectQuery(`SELECT wrapped_key FROM keys WHERE uid=\$1`).
		WithArgs(uid[:]).
		WillReturnError(pgx.ErrNoRows)
	_, err := r.Get(ctx, uid)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestKeyRepo_GetAll(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewKeyRepo(db)
	ctx := context.Background()
	uid1 := model.UID{1}
	uid2 := model.UID{2}

	mock.ExpectQuery(`SELECT uid, wrapped_key FROM keys`).
		WillReturnRows(pgxmock.NewRows([]string{"uid", "wrapped_key"}).
			AddRow(uid1[:], []byte("w1")).
			AddRow(uid2[:], []byte("w2")))
	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, []byte("w1"), all[uid1])
}
