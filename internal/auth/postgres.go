package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgErrUniqueViolation = "23505"

// PGStore owns the PostgreSQL handle behind the auth stores.
type PGStore struct {
	db *sql.DB
}

// OpenPG opens a pgx stdlib pool against dsn.
func OpenPG(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an already open handle, mostly for tests.
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Users() UserStore             { return pgUsers{s.db} }
func (s *PGStore) Businesses() BusinessStore    { return pgBusinesses{s.db} }
func (s *PGStore) Memberships() MembershipStore { return pgMemberships{s.db} }

// Users ---------------------------------------------------------------------

type pgUsers struct {
	db *sql.DB
}

var _ UserStore = pgUsers{}

func (s pgUsers) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, name, email, phone_number, password_hash, google_id)
		values ($1, $2, $3, nullif($4, ''), $5, nullif($6, ''))
	`, u.ID, u.Name, u.Email, u.PhoneNumber, u.PasswordHash, u.GoogleID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

const userColumns = `
	select id, name, email, coalesce(phone_number, ''), password_hash,
	       coalesce(google_id, ''), coalesce(refresh_token_hash, ''),
	       created_at, updated_at
	from users`

func (s pgUsers) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, userColumns+` where id = $1`, id))
}

func (s pgUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, userColumns+` where email = $1`, email))
}

func (s pgUsers) LinkGoogleID(ctx context.Context, userID, googleID string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set google_id = $2, updated_at = now() where id = $1
	`, userID, googleID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s pgUsers) UpdateRefreshTokenHash(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set refresh_token_hash = nullif($2, ''), updated_at = now() where id = $1
	`, userID, hash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.PasswordHash,
		&u.GoogleID, &u.RefreshTokenHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Businesses ----------------------------------------------------------------

type pgBusinesses struct {
	db *sql.DB
}

var _ BusinessStore = pgBusinesses{}

func (s pgBusinesses) CreateWithOwner(ctx context.Context, b *Business, owner *Membership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		insert into businesses (id, owner_id, name, house_number, street, city, state,
		                        zip_code, phone_number, map_url, latitude, longitude)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, nullif($10, ''), $11, $12)
	`, b.ID, b.OwnerID, b.Name, b.HouseNumber, b.Street, b.City, b.State,
		b.ZipCode, b.PhoneNumber, b.MapURL, b.Latitude, b.Longitude)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		insert into memberships (id, user_id, business_id, role)
		values ($1, $2, $3, $4)
	`, owner.ID, owner.UserID, owner.BusinessID, string(owner.Role))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

const businessColumns = `
	select id, owner_id, name, house_number, street, city, state, zip_code,
	       phone_number, coalesce(map_url, ''), latitude, longitude,
	       created_at, updated_at
	from businesses`

func (s pgBusinesses) Find(ctx context.Context, id string) (*Business, error) {
	return scanBusiness(s.db.QueryRowContext(ctx, businessColumns+` where id = $1`, id))
}

func (s pgBusinesses) List(ctx context.Context) ([]*Business, error) {
	rows, err := s.db.QueryContext(ctx, businessColumns+` order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func scanBusiness(row rowScanner) (*Business, error) {
	var b Business
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.HouseNumber, &b.Street, &b.City,
		&b.State, &b.ZipCode, &b.PhoneNumber, &b.MapURL, &b.Latitude, &b.Longitude,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Memberships ---------------------------------------------------------------

type pgMemberships struct {
	db *sql.DB
}

var _ MembershipStore = pgMemberships{}

// Create checks the (user, business) pair before inserting; the unique index
// backs the check against racing inserts.
func (s pgMemberships) Create(ctx context.Context, m *Membership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `
		select id from memberships where user_id = $1 and business_id = $2
	`, m.UserID, m.BusinessID).Scan(&existing)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		insert into memberships (id, user_id, business_id, role)
		values ($1, $2, $3, $4)
	`, m.ID, m.UserID, m.BusinessID, string(m.Role))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

const membershipColumns = `
	select id, user_id, business_id, role, created_at
	from memberships`

func (s pgMemberships) Find(ctx context.Context, id string) (*Membership, error) {
	return scanMembership(s.db.QueryRowContext(ctx, membershipColumns+` where id = $1`, id))
}

func (s pgMemberships) FindByUserAndBusiness(ctx context.Context, userID, businessID string) (*Membership, error) {
	return scanMembership(s.db.QueryRowContext(ctx,
		membershipColumns+` where user_id = $1 and business_id = $2`, userID, businessID))
}

func (s pgMemberships) List(ctx context.Context) ([]*Membership, error) {
	rows, err := s.db.QueryContext(ctx, membershipColumns+` order by created_at`)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

func (s pgMemberships) ListByBusiness(ctx context.Context, businessID string) ([]*Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		membershipColumns+` where business_id = $1 order by created_at`, businessID)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

func collectMemberships(rows *sql.Rows) ([]*Membership, error) {
	defer rows.Close()
	var result []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s pgMemberships) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from memberships where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanMembership(row rowScanner) (*Membership, error) {
	var m Membership
	var role string
	err := row.Scan(&m.ID, &m.UserID, &m.BusinessID, &role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Role = Role(role)
	return &m, nil
}

// helpers -------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
