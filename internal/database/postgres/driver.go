package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/minaops/internal/database"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// querier is satisfied by both a pooled connection and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Driver implements the database.Driver interface for PostgreSQL.
type Driver struct {
	pool   *pgxpool.Pool
	dbName string
	log    logrus.FieldLogger
}

// New creates a new PostgreSQL driver.
func New(log logrus.FieldLogger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{log: log}
}

// Connect establishes a connection pool to PostgreSQL.
func (d *Driver) Connect(ctx context.Context, dsn string) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 2
	cfg.MinConns = 0
	// Scripts may run DDL between statements; cached plans would go stale.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: connect: %v", database.ErrUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("%w: ping: %v", database.ErrUnavailable, err)
	}

	d.pool = pool
	d.dbName = cfg.ConnConfig.Database
	d.log.WithFields(logrus.Fields{
		"host":     cfg.ConnConfig.Host,
		"database": d.dbName,
		"user":     cfg.ConnConfig.User,
	}).Debug("connected")
	return nil
}

// Close closes the connection pool.
func (d *Driver) Close() error {
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}

// Ping checks if the connection is alive.
func (d *Driver) Ping(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("%w: not connected", database.ErrUnavailable)
	}
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", database.ErrUnavailable, err)
	}
	return nil
}

// DatabaseName returns the name of the connected database.
func (d *Driver) DatabaseName() string {
	return d.dbName
}

// Execute runs the batch on one acquired connection. Unless autocommit is
// requested the statements share a transaction; check mode always rolls
// back.
func (d *Driver) Execute(ctx context.Context, b *database.Batch) (res *database.QueryResult, err error) {
	if d.pool == nil {
		return nil, fmt.Errorf("%w: not connected", database.ErrUnavailable)
	}
	if len(b.Statements) == 0 {
		return nil, fmt.Errorf("%w: empty batch", database.ErrInvalidParams)
	}

	start := time.Now()
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire: %v", database.ErrUnavailable, err)
	}
	defer conn.Release()

	var q querier = conn
	transactional := !b.Autocommit || b.Check
	if transactional {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return nil, wrapExec(conn, "begin", err)
		}
		// Rollback after a successful Commit is a no-op.
		defer func() {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				d.log.WithError(rbErr).Warn("rollback failed")
			}
		}()
		q = tx
	}

	if b.SessionRole != "" {
		if transactional {
			_, err = q.Exec(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(b.SessionRole))
		} else {
			_, err = q.Exec(ctx, "SET ROLE "+pq.QuoteIdentifier(b.SessionRole))
			defer func() {
				if _, resetErr := conn.Exec(context.WithoutCancel(ctx), "RESET ROLE"); resetErr != nil {
					d.log.WithError(resetErr).Warn("reset role failed")
				}
			}()
		}
		if err != nil {
			return nil, wrapExec(conn, "set role "+b.SessionRole, err)
		}
	}

	res = &database.QueryResult{Query: b.Text()}
	for i, st := range b.Statements {
		out, err := runStatement(ctx, q, st)
		if err != nil {
			return nil, wrapExec(conn, fmt.Sprintf("statement %d", i+1), err)
		}
		d.log.WithFields(logrus.Fields{
			"statement": i + 1,
			"status":    out.tag.String(),
		}).Debug("statement executed")

		rowCount := out.tag.RowsAffected()
		res.Changed = res.Changed || database.Classify(out.tag.String(), rowCount)
		res.RowCount = rowCount
		res.StatusMessage = out.tag.String()
		res.QueryResult = out.rows
	}

	if transactional && !b.Check {
		if err := q.(pgx.Tx).Commit(ctx); err != nil {
			return nil, wrapExec(conn, "commit", err)
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

// wrapExec marks err as ErrUnavailable when the session itself was lost,
// so only server-side statement failures surface as query errors.
func wrapExec(conn *pgxpool.Conn, op string, err error) error {
	if connectionLost(err, conn.Conn().IsClosed()) {
		return fmt.Errorf("%w: %s: %w", database.ErrUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func connectionLost(err error, closed bool) bool {
	if closed || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// admin_shutdown, crash_shutdown, cannot_connect_now
		return pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

type statementResult struct {
	tag  pgconn.CommandTag
	rows database.Rows
}

// runStatement materializes every row the statement returns.
func runStatement(ctx context.Context, q querier, st database.Statement) (statementResult, error) {
	rows, err := q.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return statementResult{}, err
	}
	defer rows.Close()

	var out statementResult
	fields := rows.FieldDescriptions()
	if len(fields) > 0 {
		out.rows.HasResultSet = true
		out.rows.Columns = make([]string, len(fields))
		for i, f := range fields {
			out.rows.Columns[i] = f.Name
		}
		out.rows.Items = []database.Row{}
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return statementResult{}, fmt.Errorf("read row: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		out.rows.Items = append(out.rows.Items, database.Row{Columns: out.rows.Columns, Values: values})
	}

	rows.Close()
	if err := rows.Err(); err != nil {
		return statementResult{}, err
	}
	out.tag = rows.CommandTag()
	return out, nil
}
