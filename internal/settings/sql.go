package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/rule"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS extension_rules (
	extension    TEXT NOT NULL,
	settings_key TEXT NOT NULL,
	avatar       TEXT NOT NULL,
	enabled      BOOLEAN NOT NULL DEFAULT FALSE,
	pattern      TEXT NOT NULL DEFAULT '',
	replacement  TEXT NOT NULL DEFAULT '',
	flags        TEXT NOT NULL DEFAULT 'g',
	scope        TEXT NOT NULL DEFAULT 'ai_output',
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (extension, settings_key, avatar)
)`

const sqlUpsert = `
INSERT INTO extension_rules (extension, settings_key, avatar, enabled, pattern, replacement, flags, scope, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (extension, settings_key, avatar) DO UPDATE SET
	enabled = excluded.enabled,
	pattern = excluded.pattern,
	replacement = excluded.replacement,
	flags = excluded.flags,
	scope = excluded.scope,
	updated_at = CURRENT_TIMESTAMP`

// ruleRow is one row of extension_rules
type ruleRow struct {
	Extension   string `db:"extension"`
	SettingsKey string `db:"settings_key"`
	Avatar      string `db:"avatar"`
	Enabled     bool   `db:"enabled"`
	Pattern     string `db:"pattern"`
	Replacement string `db:"replacement"`
	Flags       string `db:"flags"`
	Scope       string `db:"scope"`
}

// SQLBackend stores one row per character rule in PostgreSQL or SQLite
type SQLBackend struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLBackend connects to the database and creates the rule table
func NewSQLBackend(cfg SQLConfig, logger *zap.Logger) (*SQLBackend, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	b := &SQLBackend{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create rule table: %w", err)
	}

	logger.Info("SQL settings backend initialized",
		zap.String("driver", cfg.Driver),
		zap.String("dsn", maskURL(cfg.DSN)),
	)
	return b, nil
}

func (b *SQLBackend) Load(ctx context.Context) (*Document, error) {
	var rows []ruleRow
	query := `SELECT extension, settings_key, avatar, enabled, pattern, replacement, flags, scope FROM extension_rules`
	if err := b.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	doc := NewDocument()
	for _, row := range rows {
		scope, err := rule.ParseScopeList(row.Scope)
		if err != nil {
			b.logger.Warn("Skipping rule with invalid scope",
				zap.String("avatar", row.Avatar),
				zap.String("scope", row.Scope),
				zap.Error(err),
			)
			continue
		}
		doc.Table(row.Extension, row.SettingsKey)[row.Avatar] = &rule.Rule{
			Enabled:     row.Enabled,
			Pattern:     row.Pattern,
			Replacement: row.Replacement,
			Flags:       row.Flags,
			Scope:       scope,
		}
	}
	return doc, nil
}

// Save upserts every rule of doc in one transaction. Rows missing from doc
// are kept.
func (b *SQLBackend) Save(ctx context.Context, doc *Document) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, b.db.Rebind(sqlUpsert))
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for ext, ns := range doc.Extensions {
		for key, table := range ns {
			for avatar, r := range table {
				if r == nil {
					continue
				}
				if _, err := stmt.ExecContext(ctx,
					ext, key, avatar,
					r.Enabled, r.Pattern, r.Replacement, r.Flags, r.Scope.String(),
				); err != nil {
					return fmt.Errorf("failed to save rule for %s: %w", avatar, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rules: %w", err)
	}
	return nil
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}
