package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrUniqueViolation = "23505"

// PGStore implements Store on PostgreSQL via a shared database/sql handle.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateSessionWithSlots(ctx context.Context, sess *Session, slots []*Slot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		insert into workout_sessions (id, business_id, name)
		values ($1, $2, $3)
	`, sess.ID, sess.BusinessID, sess.Name)
	if err != nil {
		return err
	}
	for _, sl := range slots {
		_, err = tx.ExecContext(ctx, `
			insert into slots (id, session_id, start_time, end_time)
			values ($1, $2, $3, $4)
		`, sl.ID, sl.SessionID, sl.StartTime, sl.EndTime)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) FindSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		select id, business_id, name, created_at
		from workout_sessions where id = $1
	`, id).Scan(&sess.ID, &sess.BusinessID, &sess.Name, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PGStore) ListAvailabilities(ctx context.Context, businessID string, from, to *time.Time) ([]*Availability, error) {
	// from/to bound the slot window; nulls disable the respective bound.
	rows, err := s.db.QueryContext(ctx, `
		select ws.id, ws.business_id, ws.name, ws.created_at,
		       sl.id, sl.start_time, sl.end_time, b.id is not null
		from workout_sessions ws
		join slots sl on sl.session_id = ws.id
		left join bookings b on b.slot_id = sl.id
		where ws.business_id = $1
		  and ($2::timestamptz is null or sl.end_time >= $2)
		  and ($3::timestamptz is null or sl.start_time <= $3)
		order by ws.created_at, sl.start_time
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []*Availability
		index  = map[string]*Availability{}
	)
	for rows.Next() {
		var (
			sess Session
			slot Slot
		)
		err := rows.Scan(&sess.ID, &sess.BusinessID, &sess.Name, &sess.CreatedAt,
			&slot.ID, &slot.StartTime, &slot.EndTime, &slot.Booked)
		if err != nil {
			return nil, err
		}
		slot.SessionID = sess.ID
		av, ok := index[sess.ID]
		if !ok {
			av = &Availability{Session: sess}
			index[sess.ID] = av
			result = append(result, av)
		}
		av.Slots = append(av.Slots, slot)
	}
	return result, rows.Err()
}

func (s *PGStore) CreateSlots(ctx context.Context, slots []*Slot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, sl := range slots {
		_, err = tx.ExecContext(ctx, `
			insert into slots (id, session_id, start_time, end_time)
			values ($1, $2, $3, $4)
		`, sl.ID, sl.SessionID, sl.StartTime, sl.EndTime)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) ListSlots(ctx context.Context, f SlotFilter) ([]*Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		select sl.id, sl.session_id, sl.start_time, sl.end_time, b.id is not null
		from slots sl
		left join bookings b on b.slot_id = sl.id
		where sl.session_id = $1
		  and ($2::date is null or sl.start_time::date = $2)
		  and (not $3 or b.id is null)
		order by sl.start_time
	`, f.SessionID, f.Date, f.OpenOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Slot
	for rows.Next() {
		var sl Slot
		if err := rows.Scan(&sl.ID, &sl.SessionID, &sl.StartTime, &sl.EndTime, &sl.Booked); err != nil {
			return nil, err
		}
		result = append(result, &sl)
	}
	return result, rows.Err()
}

func (s *PGStore) SlotBusinesses(ctx context.Context, slotIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(slotIDs))
	if len(slotIDs) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(slotIDs))
	args := make([]any, len(slotIDs))
	for i, id := range slotIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select sl.id, ws.business_id
		from slots sl
		join workout_sessions ws on ws.id = sl.session_id
		where sl.id in (%s)
	`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var slotID, businessID string
		if err := rows.Scan(&slotID, &businessID); err != nil {
			return nil, err
		}
		result[slotID] = businessID
	}
	return result, rows.Err()
}

// CreateBookings inserts the batch in one transaction. The unique index on
// bookings.slot_id turns a double booking into ErrSlotTaken and rolls the
// whole batch back.
func (s *PGStore) CreateBookings(ctx context.Context, bookings []*Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, b := range bookings {
		_, err = tx.ExecContext(ctx, `
			insert into bookings (id, slot_id, user_id)
			values ($1, $2, $3)
		`, b.ID, b.SlotID, b.UserID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: slot %s", ErrSlotTaken, b.SlotID)
			}
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: slot %s", ErrNotFound, b.SlotID)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) FindBooking(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	err := s.db.QueryRowContext(ctx, `
		select id, slot_id, user_id, created_at
		from bookings where id = $1
	`, id).Scan(&b.ID, &b.SlotID, &b.UserID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PGStore) ListBookingsByUser(ctx context.Context, userID string) ([]*Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, slot_id, user_id, created_at
		from bookings where user_id = $1 order by created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.SlotID, &b.UserID, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &b)
	}
	return result, rows.Err()
}

func (s *PGStore) DeleteBooking(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from bookings where id = $1`, id)
	if err != nil {
		return err
	}
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

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
