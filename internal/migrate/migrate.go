// Package migrate applies embedded SQL migrations to the two logical
// databases on startup.
package migrate

import (
	"context"
	"database/sql"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/zidek-labs/bellrock/migrations"
)

// UpMain applies the main-store migrations (Users, Peers, Observations, Locations).
func UpMain(ctx context.Context, dsn string) error {
	return runGoose(ctx, dsn, migrations.MainFS, "main")
}

// UpKeyStore applies the segregated key-store migrations.
func UpKeyStore(ctx context.Context, dsn string) error {
	return runGoose(ctx, dsn, migrations.KeyStoreFS, "keystore")
}

func runGoose(ctx context.Context, dsn string, fsys fs.FS, dir string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}
