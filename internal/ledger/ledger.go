// Package ledger is the sole reader/writer of service and booking
// records. It owns the read-validate-insert sequence that enforces the
// one-booking-per-slot invariant.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"flawless/internal/events"
	"flawless/internal/models"
	"flawless/internal/slots"
)

const defaultTimeout = 5 * time.Second

// Ledger wraps the store with validation, bounded timeouts and the
// error taxonomy. Occupancy is always re-read inside the booking
// transaction; nothing is cached across requests.
type Ledger struct {
	db           *sql.DB
	grid         slots.Grid
	placeholders []string
	timeout      time.Duration
	bus          *events.Bus
	logger       *zerolog.Logger
}

// Options configures a Ledger.
type Options struct {
	// PlaceholderTokens overrides DefaultPlaceholderTokens when non-empty.
	PlaceholderTokens []string
	// Timeout bounds every store call. Defaults to 5s.
	Timeout time.Duration
	// Bus receives a BookingCreated event after a successful commit.
	// Optional.
	Bus *events.Bus
}

// New creates a Ledger over an open database handle.
func New(db *sql.DB, grid slots.Grid, opts Options, logger *zerolog.Logger) *Ledger {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Ledger{
		db:           db,
		grid:         grid,
		placeholders: normalizeTokens(opts.PlaceholderTokens),
		timeout:      opts.Timeout,
		bus:          opts.Bus,
		logger:       logger,
	}
}

// Grid returns the slot grid the ledger books against.
func (l *Ledger) Grid() slots.Grid { return l.grid }

func (l *Ledger) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

// storeErr maps a raw driver fault to ErrStoreUnavailable, keeping the
// underlying detail in the message.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrStoreUnavailable)
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// ListActiveServices returns all active services ordered by name.
func (l *Ledger) ListActiveServices(ctx context.Context) ([]models.Service, error) {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), price, duration, is_active
		FROM services
		WHERE is_active = 1
		ORDER BY name ASC`)
	if err != nil {
		return nil, storeErr("list services", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.Duration, &s.IsActive); err != nil {
			return nil, storeErr("scan service", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list services", err)
	}
	return services, nil
}

// FindServiceByNameFragment matches fragment case-insensitively as a
// substring of active service names and returns the first match in id
// order. ErrServiceNotFound is a normal outcome.
func (l *Ledger) FindServiceByNameFragment(ctx context.Context, fragment string) (*models.Service, error) {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()
	return findService(ctx, l.db, fragment)
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findService(ctx context.Context, q querier, fragment string) (*models.Service, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, fmt.Errorf("%w: empty service name", ErrServiceNotFound)
	}

	var s models.Service
	err := q.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), price, duration, is_active
		FROM services
		WHERE is_active = 1 AND LOWER(name) LIKE '%' || LOWER(?) || '%'
		ORDER BY id ASC
		LIMIT 1`,
		fragment,
	).Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.Duration, &s.IsActive)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, fragment)
	}
	if err != nil {
		return nil, storeErr("find service", err)
	}
	return &s, nil
}

func findServiceByID(ctx context.Context, q querier, id int64) (*models.Service, error) {
	var s models.Service
	err := q.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), price, duration, is_active
		FROM services
		WHERE id = ? AND is_active = 1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.Duration, &s.IsActive)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrServiceNotFound, id)
	}
	if err != nil {
		return nil, storeErr("find service", err)
	}
	return &s, nil
}

// GetOccupiedTimes returns the booking times on date that are held by an
// occupying booking (any status except rejected/cancelled).
func (l *Ledger) GetOccupiedTimes(ctx context.Context, date string) (map[string]struct{}, error) {
	if _, err := slots.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	rows, err := l.db.QueryContext(ctx, `
		SELECT booking_time FROM bookings
		WHERE booking_date = ? AND status NOT IN (?, ?)`,
		date, models.StatusRejected, models.StatusCancelled)
	if err != nil {
		return nil, storeErr("get occupied times", err)
	}
	defer rows.Close()

	occupied := make(map[string]struct{})
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, storeErr("scan occupied time", err)
		}
		occupied[t] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("get occupied times", err)
	}
	return occupied, nil
}

// Availability returns the free slots for date in ascending order.
// A closed day yields ErrClosed so callers can phrase it apart from a
// fully booked day.
func (l *Ledger) Availability(ctx context.Context, date string) ([]string, error) {
	day, err := slots.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if l.grid.IsClosed(day) {
		return nil, fmt.Errorf("%w: %s", ErrClosed, day.Weekday())
	}

	occupied, err := l.GetOccupiedTimes(ctx, date)
	if err != nil {
		return nil, err
	}
	return slots.FreeSlots(day, occupied, l.grid), nil
}

// CreateBookingParams carries the arguments for CreateBooking. The
// service is resolved by id when ServiceID is set, otherwise by name
// fragment.
type CreateBookingParams struct {
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ServiceID     int64
	ServiceName   string
	Date          string // YYYY-MM-DD
	Time          string // HH:MM
}

// CreateBooking admits a new pending booking if the slot is still free at
// commit time. The occupancy check and the insert run in one transaction,
// backed by the partial unique index on (booking_date, booking_time), so
// two concurrent calls for the same slot can never both succeed.
func (l *Ledger) CreateBooking(ctx context.Context, p CreateBookingParams) (*models.Booking, error) {
	// Contact and argument validation happens before any store access.
	if err := l.validateContact("name", p.CustomerName); err != nil {
		return nil, err
	}
	if err := l.validateContact("email", p.CustomerEmail); err != nil {
		return nil, err
	}
	if err := l.validateContact("phone", p.CustomerPhone); err != nil {
		return nil, err
	}

	day, err := slots.ParseDate(p.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	clock, err := slots.ParseClock(p.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !l.grid.Contains(clock) {
		return nil, fmt.Errorf("%w: %s is not a bookable slot", ErrInvalidArgument, clock)
	}
	if l.grid.IsClosed(day) {
		return nil, fmt.Errorf("%w: %s", ErrClosed, day.Weekday())
	}

	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var service *models.Service
	if p.ServiceID > 0 {
		service, err = findServiceByID(ctx, tx, p.ServiceID)
	} else {
		service, err = findService(ctx, tx, p.ServiceName)
	}
	if err != nil {
		return nil, err
	}

	// Re-read current occupancy inside the transaction; values computed
	// earlier in the conversation are never trusted here.
	var occupying int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE booking_date = ? AND booking_time = ? AND status NOT IN (?, ?)`,
		p.Date, clock, models.StatusRejected, models.StatusCancelled,
	).Scan(&occupying)
	if err != nil {
		return nil, storeErr("check slot", err)
	}
	if occupying > 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrSlotTaken, p.Date, clock)
	}

	now := time.Now().UTC()
	booking := &models.Booking{
		CustomerName:  strings.TrimSpace(p.CustomerName),
		CustomerEmail: strings.TrimSpace(p.CustomerEmail),
		CustomerPhone: strings.TrimSpace(p.CustomerPhone),
		ServiceID:     service.ID,
		BookingDate:   p.Date,
		BookingTime:   clock,
		TotalAmount:   service.Price,
		Status:        models.StatusPending,
		CreatedAt:     now,
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			customer_name, customer_email, customer_phone, service_id,
			booking_date, booking_time, total_amount, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.CustomerName, booking.CustomerEmail, booking.CustomerPhone,
		booking.ServiceID, booking.BookingDate, booking.BookingTime,
		booking.TotalAmount, booking.Status, now, now,
	)
	if err != nil {
		// The unique index catches a writer that slipped in between
		// another connection's check and ours.
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrSlotTaken, p.Date, clock)
		}
		return nil, storeErr("insert booking", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, storeErr("booking id", err)
	}
	booking.ID = id

	if err := tx.Commit(); err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrSlotTaken, p.Date, clock)
		}
		return nil, storeErr("commit booking", err)
	}

	l.logger.Info().
		Int64("booking_id", booking.ID).
		Str("service", service.Name).
		Str("date", booking.BookingDate).
		Str("time", booking.BookingTime).
		Msg("booking created")

	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.BookingCreated,
			Booking: &models.BookingDetail{
				Booking:     *booking,
				ServiceName: service.Name,
			},
		})
	}
	return booking, nil
}

// GetBookingByID returns the booking joined with its service name.
// ErrNotFound for an unknown id is a normal outcome.
func (l *Ledger) GetBookingByID(ctx context.Context, id int64) (*models.BookingDetail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: booking id must be positive", ErrInvalidArgument)
	}

	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	var d models.BookingDetail
	err := l.db.QueryRowContext(ctx, `
		SELECT b.id, b.customer_name, b.customer_email, b.customer_phone,
		       b.service_id, b.booking_date, b.booking_time, b.total_amount,
		       b.status, b.created_at, s.name
		FROM bookings b
		JOIN services s ON b.service_id = s.id
		WHERE b.id = ?`,
		id,
	).Scan(
		&d.ID, &d.CustomerName, &d.CustomerEmail, &d.CustomerPhone,
		&d.ServiceID, &d.BookingDate, &d.BookingTime, &d.TotalAmount,
		&d.Status, &d.CreatedAt, &d.ServiceName,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: booking %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get booking", err)
	}
	return &d, nil
}

// UpdateBookingStatus performs an administrative status transition.
// Only pending bookings move; every edge is terminal.
func (l *Ledger) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}

	current, err := l.GetBookingByID(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanTransition(current.Status, status) {
		return fmt.Errorf("%w: cannot move booking from %s to %s", ErrInvalidArgument, current.Status, status)
	}

	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	result, err := l.db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), id, current.Status,
	)
	if err != nil {
		return storeErr("update booking status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeErr("update booking status", err)
	}
	if affected == 0 {
		// Lost a race with another admin action.
		return fmt.Errorf("%w: booking %d changed concurrently", ErrInvalidArgument, id)
	}

	l.logger.Info().Int64("booking_id", id).Str("status", status).Msg("booking status updated")
	return nil
}

// ListBookingsRange returns bookings with booking_date in [from, to],
// ordered by date then time. Used by the export endpoint.
func (l *Ledger) ListBookingsRange(ctx context.Context, from, to string) ([]models.BookingDetail, error) {
	if _, err := slots.ParseDate(from); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if _, err := slots.ParseDate(to); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if from > to {
		return nil, fmt.Errorf("%w: from %s is after to %s", ErrInvalidArgument, from, to)
	}

	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	rows, err := l.db.QueryContext(ctx, `
		SELECT b.id, b.customer_name, b.customer_email, b.customer_phone,
		       b.service_id, b.booking_date, b.booking_time, b.total_amount,
		       b.status, b.created_at, s.name
		FROM bookings b
		JOIN services s ON b.service_id = s.id
		WHERE b.booking_date BETWEEN ? AND ?
		ORDER BY b.booking_date ASC, b.booking_time ASC`,
		from, to)
	if err != nil {
		return nil, storeErr("list bookings", err)
	}
	defer rows.Close()

	var bookings []models.BookingDetail
	for rows.Next() {
		var d models.BookingDetail
		if err := rows.Scan(
			&d.ID, &d.CustomerName, &d.CustomerEmail, &d.CustomerPhone,
			&d.ServiceID, &d.BookingDate, &d.BookingTime, &d.TotalAmount,
			&d.Status, &d.CreatedAt, &d.ServiceName,
		); err != nil {
			return nil, storeErr("scan booking", err)
		}
		bookings = append(bookings, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list bookings", err)
	}
	return bookings, nil
}
