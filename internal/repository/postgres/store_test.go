package postgres

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/zidek-labs/bellrock/internal/model"
)

func newStore(t *testing.T) (*Store, pgxmock.PgxPoolIface, pgxmock.PgxPoolIface) {
	t.Helper()
	mainDB, mainMock := newDB(t)
	keyDB, keyMock := newDB(t)
	return NewStore(mainDB, keyDB), mainMock, keyMock
}

// TestStore_DeleteUser_CascadesAcrossAllTables exercises spec invariant 4:
// deleting a user removes every row that references it, across both the
// main store and the segregated key store, in one call.
func TestStore_DeleteUser_CascadesAcrossAllTables(t *testing.T) {
	store, mainMock, keyMock := newStore(t)
	defer mainMock.Close()
	defer keyMock.Close()
	ctx := context.Background()
	uid := model.UID{9}

	mainMock.ExpectExec(`DELETE FROM observations WHERE observer_uid=\$1 OR resolved_uid=\$1`).
		WithArgs(uid[:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mainMock.ExpectExec(`DELETE FROM locations WHERE uid=\$1`).
		WithArgs(uid[:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mainMock.ExpectExec(`DELETE FROM peers WHERE uid=\$1 OR peer=\$1`).
		WithArgs(uid[:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	keyMock.ExpectExec(`DELETE FROM keys WHERE uid=\$1`).
		WithArgs(uid[:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mainMock.ExpectExec(`DELETE FROM users WHERE uid=\$1`).
		WithArgs(uid[:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.DeleteUser(ctx, uid))
	require.NoError(t, mainMock.ExpectationsWereMet())
	require.NoError(t, keyMock.ExpectationsWereMet())
}

// TestStore_Clear_TruncatesEveryTable exercises the Idempotence law's
// no-op-on-empty-store half indirectly: Clear must succeed whether or not
// any rows exist, since TRUNCATE is unconditional.
func TestStore_Clear_TruncatesEveryTable(t *testing.T) {
	store, mainMock, keyMock := newStore(t)
	defer mainMock.Close()
	defer keyMock.Close()
	ctx := context.Background()

	mainMock.ExpectExec(`TRUNCATE TABLE observations`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mainMock.ExpectExec(`TRUNCATE TABLE locations`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mainMock.ExpectExec(`TRUNCATE TABLE peers`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	keyMock.ExpectExec(`TRUNCATE TABLE keys`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mainMock.ExpectExec(`TRUNCATE TABLE users`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, mainMock.ExpectationsWereMet())
	require.NoError(t, keyMock.ExpectationsWereMet())
}
