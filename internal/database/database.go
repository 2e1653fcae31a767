package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBExecutor подмножество методов пула pgx, которым пользуется хранилище.
// Ему удовлетворяют *pgxpool.Pool и pgxmock.PgxPoolIface.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Database struct {
	db  DBExecutor
	dsn string
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// checkConnection проверяет доступность базы данных.
func checkConnection(ctx context.Context, db DBExecutor) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	return nil
}

// New создает пул подключений и проверяет соединение.
func New(ctx context.Context, dsn string) (*Database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании пула подключений: %w", err)
	}

	if err := checkConnection(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Database{db: pool, dsn: dsn}, nil
}

// NewWithExecutor оборачивает готовый исполнитель запросов, миграции при этом недоступны.
func NewWithExecutor(db DBExecutor) *Database {
	return &Database{db: db}
}

// RunMigrations применяет встроенные миграции.
func (d *Database) RunMigrations() error {
	driver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("не удалось создать источник миграций: %w", err)
	}

	migrations, err := migrate.NewWithSourceInstance("iofs", driver, d.dsn)
	if err != nil {
		return fmt.Errorf("не удалось инициализировать миграции: %w", err)
	}
	defer migrations.Close()

	if err := migrations.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Log.Info("no new migrations")
			return nil
		}
		return fmt.Errorf("ошибка при выполнении миграций: %w", err)
	}

	logger.Log.Info("migrations applied")
	return nil
}

// Ping проверяет доступность базы данных.
func (d *Database) Ping(ctx context.Context) error {
	return checkConnection(ctx, d.db)
}

// Close закрывает пул подключений.
func (d *Database) Close() {
	if d.db != nil {
		d.db.Close()
	}
}
