// Package migrations применяет SQL-миграции платёжного журнала.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
)

// ErrDirtySchema предыдущая миграция оборвалась, схему нужно поправить вручную.
var ErrDirtySchema = errors.New("database schema is dirty")

// Run применяет миграции из fsys и возвращает итоговую версию схемы.
// Файлы читаются до подключения к базе, поэтому битый набор миграций
// не трогает журнал. Повторный запуск не является ошибкой.
func Run(db *sql.DB, fsys fs.FS, log *slog.Logger) (uint, error) {
	const op = "migrations.Run"
	log = log.With(sl.Op(op))

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("failed to close migrations source", sl.Err(err))
		}
	}()

	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx_v5", driver)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	from, err := version(m)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("database schema is up to date", slog.Uint64("version", uint64(from)))
		return from, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	to, err := version(m)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("database migrations applied",
		slog.Uint64("from", uint64(from)), slog.Uint64("to", uint64(to)))
	return to, nil
}

// version текущая версия схемы; ноль, если миграции ещё не применялись.
func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("%w: version %d", ErrDirtySchema, v)
	}
	return v, nil
}
