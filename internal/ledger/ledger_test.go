package ledger

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flawless/internal/database"
	"flawless/internal/events"
	"flawless/internal/models"
	"flawless/internal/slots"
)

func testLedger(t *testing.T, opts Options) *Ledger {
	t.Helper()

	logger := zerolog.New(io.Discard)
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.SeedServices(context.Background(), []database.SeedService{
		{Name: "Haircut", Description: "Classic cut and style", Price: 500, Duration: 60},
		{Name: "Hair Spa", Price: 1200, Duration: 90},
		{Name: "Bridal Makeup", Price: 8000, Duration: 180},
	}))

	grid, err := slots.BuildGrid("10:00", "19:00", 60, []time.Weekday{time.Sunday})
	require.NoError(t, err)
	return New(db.DB, grid, opts, &logger)
}

func validParams() CreateBookingParams {
	return CreateBookingParams{
		CustomerName:  "Asha",
		CustomerEmail: "asha@x.com",
		CustomerPhone: "9998887777",
		ServiceName:   "Haircut",
		Date:          "2025-06-02", // a Monday
		Time:          "10:00",
	}
}

func TestListActiveServices(t *testing.T) {
	l := testLedger(t, Options{})
	services, err := l.ListActiveServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 3)

	// Ordered by name ascending.
	assert.Equal(t, "Bridal Makeup", services[0].Name)
	assert.Equal(t, "Hair Spa", services[1].Name)
	assert.Equal(t, "Haircut", services[2].Name)
}

func TestFindServiceByNameFragment(t *testing.T) {
	l := testLedger(t, Options{})
	ctx := context.Background()

	t.Run("case insensitive substring", func(t *testing.T) {
		s, err := l.FindServiceByNameFragment(ctx, "haircut")
		require.NoError(t, err)
		assert.Equal(t, "Haircut", s.Name)
		assert.Equal(t, float64(500), s.Price)
	})

	t.Run("ambiguous fragment picks lowest id", func(t *testing.T) {
		s, err := l.FindServiceByNameFragment(ctx, "hair")
		require.NoError(t, err)
		assert.Equal(t, "Haircut", s.Name)
	})

	t.Run("not found is a normal outcome", func(t *testing.T) {
		_, err := l.FindServiceByNameFragment(ctx, "tattoo")
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})

	t.Run("empty fragment", func(t *testing.T) {
		_, err := l.FindServiceByNameFragment(ctx, "   ")
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})
}

func TestCreateBooking(t *testing.T) {
	l := testLedger(t, Options{})
	ctx := context.Background()

	booking, err := l.CreateBooking(ctx, validParams())
	require.NoError(t, err)
	assert.Positive(t, booking.ID)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, float64(500), booking.TotalAmount)
	assert.Equal(t, "2025-06-02", booking.BookingDate)
	assert.Equal(t, "10:00", booking.BookingTime)

	t.Run("same slot again is taken", func(t *testing.T) {
		p := validParams()
		p.CustomerName = "Riya"
		p.CustomerEmail = "riya@x.com"
		_, err := l.CreateBooking(ctx, p)
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("other slot still free", func(t *testing.T) {
		p := validParams()
		p.Time = "11:00"
		other, err := l.CreateBooking(ctx, p)
		require.NoError(t, err)
		assert.NotEqual(t, booking.ID, other.ID)
	})

	t.Run("occupied times reflect both", func(t *testing.T) {
		occupied, err := l.GetOccupiedTimes(ctx, "2025-06-02")
		require.NoError(t, err)
		assert.Len(t, occupied, 2)
		_, ok := occupied["10:00"]
		assert.True(t, ok)
	})
}

func TestCreateBooking_Rejections(t *testing.T) {
	l := testLedger(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateBookingParams)
		want   error
	}{
		{"placeholder name", func(p *CreateBookingParams) { p.CustomerName = "Unknown" }, ErrInvalidContactInfo},
		{"placeholder email", func(p *CreateBookingParams) { p.CustomerEmail = "user@example.com" }, ErrInvalidContactInfo},
		{"placeholder phone", func(p *CreateBookingParams) { p.CustomerPhone = "Not Provided" }, ErrInvalidContactInfo},
		{"empty name", func(p *CreateBookingParams) { p.CustomerName = "  " }, ErrInvalidContactInfo},
		{"uppercase token", func(p *CreateBookingParams) { p.CustomerName = "AWAITING INPUT" }, ErrInvalidContactInfo},
		{"unknown service", func(p *CreateBookingParams) { p.ServiceName = "tattoo" }, ErrServiceNotFound},
		{"malformed date", func(p *CreateBookingParams) { p.Date = "02-06-2025" }, ErrInvalidArgument},
		{"malformed time", func(p *CreateBookingParams) { p.Time = "10am" }, ErrInvalidArgument},
		{"off-grid time", func(p *CreateBookingParams) { p.Time = "09:00" }, ErrInvalidArgument},
		{"closed sunday", func(p *CreateBookingParams) { p.Date = "2025-06-01" }, ErrClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := l.CreateBooking(ctx, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// None of the rejections may have left a row behind.
	occupied, err := l.GetOccupiedTimes(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.Empty(t, occupied)
}

func TestCreateBooking_ByServiceID(t *testing.T) {
	l := testLedger(t, Options{})
	ctx := context.Background()

	spa, err := l.FindServiceByNameFragment(ctx, "spa")
	require.NoError(t, err)

	p := validParams()
	p.ServiceName = ""
	p.ServiceID = spa.ID
	booking, err := l.CreateBooking(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, spa.ID, booking.ServiceID)
	assert.Equal(t, spa.Price, booking.TotalAmount)
}

// Two concurrent calls for the identical slot: exactly one succeeds and
// exactly one occupying booking exists afterwards.
func TestCreateBooking_ConcurrentSameSlot(t *testing.T) {
	l := testLedger(t, Options{Timeout: 10 * time.Second})
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := validParams()
			_, errs[i] = l.CreateBooking(ctx, p)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrSlotTaken)
		}
	}
	assert.Equal(t, 1, successes)

	occupied, err := l.GetOccupiedTimes(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.Len(t, occupied, 1)
}

func TestGetBookingByID(t *testing.T) {
	l := testLedger(t, Options{})
	ctx := context.Background()

	created, err := l.CreateBooking(ctx, validParams())
	require.NoError(t, err)

	first, err := l.GetBookingByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Haircut", first.ServiceName)
	assert.Equal(t, created.ID, first.ID)

	// Idempotent read: identical data both times.
	second, err := l.GetBookingByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	t.Run("unknown id", func(t *testing.T) {
		_, err := l.GetBookingByID(ctx, 99999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := l.GetBookingByID(ctx, 0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestUpdateBookingStatus(t *testing.T) {
	l := testLedger(t, Options{})
	ctx := context.Background()

	created, err := l.CreateBooking(ctx, validParams())
	require.NoError(t, err)

	require.NoError(t, l.UpdateBookingStatus(ctx, created.ID, models.StatusCancelled))

	got, err := l.GetBookingByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	t.Run("terminal status does not move", func(t *testing.T) {
		err := l.UpdateBookingStatus(ctx, created.ID, models.StatusConfirmed)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("unknown status", func(t *testing.T) {
		err := l.UpdateBookingStatus(ctx, created.ID, "approved")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("cancelled booking frees the slot", func(t *testing.T) {
		again, err := l.CreateBooking(ctx, validParams())
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, again.ID)
	})
}

func TestAvailability(t *testing.T) {
	l := testLedger(t, Options{})
	ctx := context.Background()

	free, err := l.Availability(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, l.Grid().Times(), free)

	_, err = l.CreateBooking(ctx, validParams())
	require.NoError(t, err)

	free, err = l.Availability(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.NotContains(t, free, "10:00")
	assert.Len(t, free, len(l.Grid().Times())-1)

	t.Run("closed day", func(t *testing.T) {
		_, err := l.Availability(ctx, "2025-06-01")
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("malformed date", func(t *testing.T) {
		_, err := l.Availability(ctx, "june 2nd")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestListBookingsRange(t *testing.T) {
	l := testLedger(t, Options{})
	ctx := context.Background()

	for _, slot := range []struct{ date, clock string }{
		{"2025-06-03", "12:00"},
		{"2025-06-02", "11:00"},
		{"2025-06-02", "10:00"},
	} {
		p := validParams()
		p.Date = slot.date
		p.Time = slot.clock
		_, err := l.CreateBooking(ctx, p)
		require.NoError(t, err)
	}

	bookings, err := l.ListBookingsRange(ctx, "2025-06-02", "2025-06-03")
	require.NoError(t, err)
	require.Len(t, bookings, 3)
	assert.Equal(t, "10:00", bookings[0].BookingTime)
	assert.Equal(t, "11:00", bookings[1].BookingTime)
	assert.Equal(t, "2025-06-03", bookings[2].BookingDate)

	t.Run("reversed range", func(t *testing.T) {
		_, err := l.ListBookingsRange(ctx, "2025-06-03", "2025-06-02")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestCreateBooking_PublishesEvent(t *testing.T) {
	bus := events.NewBus()
	var got []events.Event
	bus.Subscribe(events.BookingCreated, func(e events.Event) { got = append(got, e) })

	l := testLedger(t, Options{Bus: bus})
	booking, err := l.CreateBooking(context.Background(), validParams())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, booking.ID, got[0].Booking.ID)
	assert.Equal(t, "Haircut", got[0].Booking.ServiceName)
}
