package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/config"
)

// Connections bundles the writer and reader Bun handles. Order transitions
// always go through Writer; Reader serves catalog and history reads and may
// point at a replica.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New opens the writer pool, and a reader pool when a distinct reader DSN is
// configured. Connectivity is verified on start so a bad DSN fails the boot
// instead of the first request.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	writer, err := open(cfg.Database, cfg.Database.WriterDSN)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader := writer
	if cfg.Database.ReaderDSN != cfg.Database.WriterDSN {
		if reader, err = open(cfg.Database, cfg.Database.ReaderDSN); err != nil {
			return nil, fmt.Errorf("open reader: %w", err)
		}
	}

	conns := &Connections{Writer: writer, Reader: reader}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := ping(ctx, writer); err != nil {
				return fmt.Errorf("ping writer: %w", err)
			}
			if reader != writer {
				if err := ping(ctx, reader); err != nil {
					return fmt.Errorf("ping reader: %w", err)
				}
			}
			logger.Info("database connected",
				zap.String("driver", cfg.Database.Driver),
				zap.Bool("split_reader", reader != writer),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			err := writer.Close()
			if reader != writer {
				if rerr := reader.Close(); err == nil {
					err = rerr
				}
			}
			return err
		},
	})

	return conns, nil
}

func open(cfg config.Database, dsn string) (*bun.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	var sqlDB *sql.DB
	var db *bun.DB
	switch cfg.Driver {
	case "postgres":
		sqlDB = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		var err error
		if sqlDB, err = sql.Open("mysql", dsn); err != nil {
			return nil, err
		}
		db = bun.NewDB(sqlDB, mysqldialect.New())
	case "sqlite":
		var err error
		if sqlDB, err = sql.Open("sqlite3", dsn); err != nil {
			return nil, err
		}
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	return db, nil
}

func ping(ctx context.Context, db *bun.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.DB.PingContext(pingCtx)
}
