package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"linkage/internal/contact/models"
	"linkage/internal/contact/service"
	"linkage/pkg/platform/sentinel"
)

const unlockTimeout = 2 * time.Second

var contactColumns = []string{
	"id", "email", "phone_number", "linked_id", "link_precedence",
	"created_at", "updated_at", "deleted_at",
}

// PostgresStore persists contacts in PostgreSQL. Every transaction runs at
// SERIALIZABLE isolation; serialization failures and deadlocks surface as
// sentinel.ErrRetryable so the service can replay the whole reconciliation.
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTxTimeout bounds transactions whose context carries no deadline.
func WithTxTimeout(timeout time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sqlx.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	return runTx(tx, fn)
}

// RunLocked takes session-level advisory locks on a dedicated connection and
// only then begins the transaction on it. A SERIALIZABLE snapshot is taken by
// the first statement of the transaction, so it must not be the lock wait.
func (s *PostgresStore) RunLocked(ctx context.Context, keys []string, fn func(store service.Store) error) error {
	keys = lockOrder(keys)
	if len(keys) == 0 {
		return s.RunInTx(ctx, fn)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return classify(fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close()
	defer s.unlockAll(conn)

	for _, key := range keys {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("advisory lock: %w", ctxErr)
			}
			return classify(fmt.Errorf("advisory lock: %w", err))
		}
	}

	tx, err := conn.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	return runTx(tx, fn)
}

// unlockAll releases the session's advisory locks before the connection goes
// back to the pool. A connection that cannot be unlocked is discarded.
func (s *PostgresStore) unlockAll(conn *sqlx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock_all()`); err != nil {
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func runTx(tx *sqlx.Tx, fn func(store service.Store) error) error {
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// lockOrder sorts and dedupes keys so overlapping requests acquire them in the
// same order.
func lockOrder(keys []string) []string {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) FindCandidates(ctx context.Context, ids models.Identifiers) (models.Candidates, error) {
	query, args := buildCandidatesQuery(ids)
	var rows []contactRow
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	return toContacts(rows), nil
}

func (t *postgresTx) FindByID(ctx context.Context, id int64) (*models.Contact, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(contactColumns...).From("contacts")
	sb.Where(sb.Equal("id", id), sb.IsNull("deleted_at"))
	query, args := sb.Build()

	var row contactRow
	if err := t.tx.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find contact by id: %w", err)
	}
	contact := row.toModel()
	return &contact, nil
}

func (t *postgresTx) Create(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("contacts")
	ib.Cols("email", "phone_number", "linked_id", "link_precedence", "created_at", "updated_at")
	ib.Values(contact.Email, contact.PhoneNumber, contact.LinkedID, string(contact.LinkPrecedence), contact.CreatedAt, contact.UpdatedAt)
	ib.Returning("id")
	query, args := ib.Build()

	if err := t.tx.QueryRowxContext(ctx, query, args...).Scan(&contact.ID); err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// Relink flattens every demoted chain onto the survivor in one statement.
func (t *postgresTx) Relink(ctx context.Context, survivorID int64, demoted []int64, now time.Time) (int64, error) {
	if len(demoted) == 0 {
		return 0, nil
	}
	query := `
		UPDATE contacts
		SET link_precedence = 'secondary',
			linked_id = $1,
			updated_at = $2
		WHERE deleted_at IS NULL
		  AND (id = ANY($3) OR linked_id = ANY($3))
	`
	result, err := t.tx.ExecContext(ctx, query, survivorID, now, pq.Array(demoted))
	if err != nil {
		return 0, fmt.Errorf("relink contacts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("relink rows affected: %w", err)
	}
	return rows, nil
}

func (t *postgresTx) FindChain(ctx context.Context, primaryID int64) ([]models.Contact, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(contactColumns...).From("contacts")
	sb.Where(sb.IsNull("deleted_at"), sb.Or(sb.Equal("id", primaryID), sb.Equal("linked_id", primaryID)))
	sb.OrderBy("created_at", "id").Asc()
	query, args := sb.Build()

	var rows []contactRow
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find chain: %w", err)
	}
	return toContacts(rows), nil
}

// buildCandidatesQuery expands direct identifier matches to whole chains in a
// single statement: the subquery projects each match onto its chain's primary
// id and the outer query loads every live member of those chains.
func buildCandidatesQuery(ids models.Identifiers) (string, []any) {
	match := sqlbuilder.PostgreSQL.NewSelectBuilder()
	match.Select("COALESCE(linked_id, id)").From("contacts")
	clauses := make([]string, 0, 2)
	if ids.Email != nil {
		clauses = append(clauses, match.Equal("email", *ids.Email))
	}
	if ids.PhoneNumber != nil {
		clauses = append(clauses, match.Equal("phone_number", *ids.PhoneNumber))
	}
	match.Where(match.IsNull("deleted_at"), match.Or(clauses...))

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(contactColumns...).From("contacts")
	sb.Where(sb.IsNull("deleted_at"), sb.Or(sb.In("id", match), sb.In("linked_id", match)))
	sb.OrderBy("created_at", "id").Asc()
	return sb.Build()
}

// classify maps driver errors onto sentinels, keeping the original in the chain.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch {
	case pqErr.Code == "40001", pqErr.Code == "40P01":
		return fmt.Errorf("%w: %w", sentinel.ErrRetryable, err)
	case pqErr.Code.Class() == "23":
		return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
	case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	default:
		return err
	}
}

type contactRow struct {
	ID             int64          `db:"id"`
	Email          sql.NullString `db:"email"`
	PhoneNumber    sql.NullString `db:"phone_number"`
	LinkedID       sql.NullInt64  `db:"linked_id"`
	LinkPrecedence string         `db:"link_precedence"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	DeletedAt      sql.NullTime   `db:"deleted_at"`
}

func (r contactRow) toModel() models.Contact {
	c := models.Contact{
		ID:             r.ID,
		LinkPrecedence: models.LinkPrecedence(r.LinkPrecedence),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Email.Valid {
		email := r.Email.String
		c.Email = &email
	}
	if r.PhoneNumber.Valid {
		phone := r.PhoneNumber.String
		c.PhoneNumber = &phone
	}
	if r.LinkedID.Valid {
		linked := r.LinkedID.Int64
		c.LinkedID = &linked
	}
	if r.DeletedAt.Valid {
		deleted := r.DeletedAt.Time
		c.DeletedAt = &deleted
	}
	return c
}

func toContacts(rows []contactRow) models.Candidates {
	out := make(models.Candidates, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
