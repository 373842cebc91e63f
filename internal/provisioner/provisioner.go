// Package provisioner creates and inspects tenant schemas in the application database.
//
// Every operation opens its own connection and closes it when done. Scoped
// operations bind search_path at connection startup, so no connection ever
// carries one tenant's schema binding into another tenant's work.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
)

// ErrUnreachable marks failures to reach the application database at all,
// as opposed to a reachable database that failed to materialize a schema.
var ErrUnreachable = errors.New("application database unreachable")

const maxIdentifierLength = 63

// Provisioner creates, verifies and drops tenant schemas
type Provisioner struct {
	base           *pgx.ConnConfig
	script         *Script
	connectTimeout time.Duration
	logger         zerolog.Logger
}

// New parses dsn and returns a Provisioner that applies script to new schemas.
func New(dsn string, script *Script, logger zerolog.Logger) (*Provisioner, error) {
	if script == nil {
		return nil, errors.New("provisioner: nil DDL script")
	}
	base, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse application database URL: %w", err)
	}
	return &Provisioner{
		base:           base,
		script:         script,
		connectTimeout: 10 * time.Second,
		logger:         logger.With().Str("component", "provisioner").Logger(),
	}, nil
}

// Script returns the DDL script applied by Provision
func (p *Provisioner) Script() *Script {
	return p.script
}

func validSchemaName(schema string) error {
	if schema == "" {
		return apperr.Invalid("schema name is required")
	}
	if len(schema) > maxIdentifierLength {
		return apperr.Invalid(fmt.Sprintf("schema name exceeds %d characters", maxIdentifierLength))
	}
	return nil
}

// connect opens a dedicated connection. A non-empty schema becomes the
// connection's only search_path entry.
func (p *Provisioner) connect(ctx context.Context, schema string) (*pgx.Conn, error) {
	cfg := p.base.Copy()
	if schema != "" {
		cfg.RuntimeParams["search_path"] = pq.QuoteIdentifier(schema)
	}

	ctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, apperr.WithDetail(apperr.CodeProvisioningFailed, apperr.ErrProvisioningFailed.Message,
			"application database unreachable", fmt.Errorf("%w: %w", ErrUnreachable, err))
	}
	return conn, nil
}

func (p *Provisioner) close(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("closing provisioner connection failed")
	}
}

// Ping checks that the application database accepts connections
func (p *Provisioner) Ping(ctx context.Context) error {
	conn, err := p.connect(ctx, "")
	if err != nil {
		return err
	}
	defer p.close(conn)
	return conn.Ping(ctx)
}

// Provision creates schema if absent and applies the DDL script inside it in
// one transaction, then verifies every expected table by introspection.
// A schema that already verifies complete is reported as AlreadyProvisioned.
func (p *Provisioner) Provision(ctx context.Context, schema string) (*model.ProvisionResult, error) {
	if err := validSchemaName(schema); err != nil {
		return nil, err
	}
	log := p.logger.With().Str("schema", schema).Logger()

	conn, err := p.connect(ctx, schema)
	if err != nil {
		return nil, err
	}
	defer p.close(conn)

	before, err := p.verify(ctx, conn, schema)
	if err != nil {
		return nil, provisionFailed(schema, "could not inspect catalog", err)
	}
	if before.Complete() {
		log.Info().Msg("schema already provisioned")
		return &model.ProvisionResult{Schema: schema, AlreadyProvisioned: true}, nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, provisionFailed(schema, "could not begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Concurrent provisioners of one schema queue on this lock; the state
	// seen after acquiring it decides whether this call creates the schema.
	if err := lockSchema(ctx, tx, schema); err != nil {
		return nil, provisionFailed(schema, "could not lock schema", err)
	}
	locked, err := p.verify(ctx, tx, schema)
	if err != nil {
		return nil, provisionFailed(schema, "could not inspect catalog", err)
	}
	if locked.Complete() {
		log.Info().Msg("schema provisioned concurrently")
		return &model.ProvisionResult{Schema: schema, AlreadyProvisioned: true}, nil
	}
	if locked.SchemaExists {
		log.Warn().Strs("missing_tables", locked.MissingTables).Msg("reusing existing incomplete schema")
	}

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema)); err != nil {
		return nil, provisionFailed(schema, "create schema failed", err)
	}
	for i, stmt := range p.script.Statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, provisionFailed(schema,
				fmt.Sprintf("statement %d of %d failed", i+1, len(p.script.Statements)), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, provisionFailed(schema, "commit failed", err)
	}

	after, err := p.verify(ctx, conn, schema)
	if err != nil {
		return nil, provisionFailed(schema, "could not inspect catalog", err)
	}
	if !after.Complete() {
		return nil, apperr.WithDetail(apperr.CodeProvisioningFailed, apperr.ErrProvisioningFailed.Message,
			fmt.Sprintf("schema %s verification failed: schema_exists=%t missing_tables=%v",
				schema, after.SchemaExists, after.MissingTables), nil)
	}

	log.Info().
		Bool("created", !locked.SchemaExists).
		Int("statements", len(p.script.Statements)).
		Str("script_version", p.script.Version).
		Msg("schema provisioned")

	return &model.ProvisionResult{
		Schema:     schema,
		Created:    !locked.SchemaExists,
		Statements: len(p.script.Statements),
	}, nil
}

// Verify reports whether schema and its expected tables exist. It only reads the catalog.
func (p *Provisioner) Verify(ctx context.Context, schema string) (model.SchemaStatus, error) {
	if err := validSchemaName(schema); err != nil {
		return model.SchemaStatus{}, err
	}
	conn, err := p.connect(ctx, "")
	if err != nil {
		return model.SchemaStatus{}, err
	}
	defer p.close(conn)

	status, err := p.verify(ctx, conn, schema)
	if err != nil {
		return model.SchemaStatus{}, fmt.Errorf("verify schema %s: %w", schema, err)
	}
	return status, nil
}

// catalogQuerier is satisfied by *pgx.Conn and pgx.Tx
type catalogQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// lockSchema takes a transaction-scoped advisory lock keyed by schema name
func lockSchema(ctx context.Context, tx pgx.Tx, schema string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, schema)
	return err
}

func (p *Provisioner) verify(ctx context.Context, conn catalogQuerier, schema string) (model.SchemaStatus, error) {
	var status model.SchemaStatus
	err := conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schema).Scan(&status.SchemaExists)
	if err != nil {
		return status, err
	}

	present := map[string]bool{}
	if status.SchemaExists {
		rows, err := conn.Query(ctx,
			`SELECT table_name::text FROM information_schema.tables WHERE table_schema = $1`, schema)
		if err != nil {
			return status, err
		}
		names, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return status, err
		}
		for _, n := range names {
			present[n] = true
		}
	}

	status.UsersTableExists = present["users"]
	for _, t := range p.script.Tables {
		if !present[t] {
			status.MissingTables = append(status.MissingTables, t)
		}
	}
	return status, nil
}

// ExecuteScoped runs one parameterized statement with name resolution bound to schema
// and returns the resulting rows.
func (p *Provisioner) ExecuteScoped(ctx context.Context, schema, sql string, args ...any) ([]map[string]any, error) {
	if err := validSchemaName(schema); err != nil {
		return nil, err
	}
	conn, err := p.connect(ctx, schema)
	if err != nil {
		return nil, err
	}
	defer p.close(conn)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("execute in schema %s: %w", schema, err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("execute in schema %s: %w", schema, err)
	}
	return result, nil
}

// InScopedTx runs fn in a transaction on a connection bound to schema.
// The transaction commits when fn returns nil.
func (p *Provisioner) InScopedTx(ctx context.Context, schema string, fn func(tx pgx.Tx) error) error {
	if err := validSchemaName(schema); err != nil {
		return err
	}
	conn, err := p.connect(ctx, schema)
	if err != nil {
		return err
	}
	defer p.close(conn)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin scoped transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit scoped transaction: %w", err)
	}
	return nil
}

// Drop removes schema and everything in it
func (p *Provisioner) Drop(ctx context.Context, schema string) error {
	if err := validSchemaName(schema); err != nil {
		return err
	}
	conn, err := p.connect(ctx, "")
	if err != nil {
		return err
	}
	defer p.close(conn)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("drop schema %s: %w", schema, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockSchema(ctx, tx, schema); err != nil {
		return fmt.Errorf("lock schema %s: %w", schema, err)
	}
	if _, err := tx.Exec(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(schema)+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", schema, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("drop schema %s: %w", schema, err)
	}
	p.logger.Warn().Str("schema", schema).Msg("schema dropped")
	return nil
}

// provisionFailed builds a client-safe error: the detail names the failing
// step and SQLSTATE, the driver error stays in the chain for server logs.
func provisionFailed(schema, step string, err error) error {
	detail := fmt.Sprintf("schema %s: %s", schema, step)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail += " (SQLSTATE " + pgErr.Code + ")"
	}
	return apperr.WithDetail(apperr.CodeProvisioningFailed, apperr.ErrProvisioningFailed.Message, detail, err)
}
