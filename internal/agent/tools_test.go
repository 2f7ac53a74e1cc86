package agent

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flawless/internal/database"
	"flawless/internal/ledger"
	"flawless/internal/slots"
)

const testSalonInfo = "LOCATION: Gangotri Society Bhatar, Surat\nHOURS: Mon-Sat 10am-7pm\nCONTACT: +91 98765 43210"

func testRegistry(t *testing.T) (*Registry, *ledger.Ledger) {
	t.Helper()

	logger := zerolog.New(io.Discard)
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.SeedServices(context.Background(), []database.SeedService{
		{Name: "Haircut", Price: 500, Duration: 60},
		{Name: "Facial", Price: 900, Duration: 45},
	}))

	grid, err := slots.BuildGrid("10:00", "13:00", 60, []time.Weekday{time.Sunday})
	require.NoError(t, err)

	l := ledger.New(db.DB, grid, ledger.Options{}, &logger)
	return NewToolset(l, testSalonInfo), l
}

func bookingArgs() map[string]any {
	return map[string]any{
		"customer_name":  "Asha",
		"customer_email": "asha@x.com",
		"customer_phone": "9998887777",
		"service_name":   "Haircut",
		"booking_date":   "2025-06-02",
		"booking_time":   "10:00",
	}
}

func TestToolListAllServices(t *testing.T) {
	registry, _ := testRegistry(t)
	out := registry.Dispatch(context.Background(), "list_all_services", nil)
	assert.Contains(t, out, "| Haircut | 60 mins | ₹500 |")
	assert.Contains(t, out, "| Facial | 45 mins | ₹900 |")
}

func TestToolGetSalonInfo(t *testing.T) {
	registry, _ := testRegistry(t)
	out := registry.Dispatch(context.Background(), "get_salon_info", nil)
	assert.Equal(t, testSalonInfo, out)
}

func TestToolCheckAvailability(t *testing.T) {
	registry, l := testRegistry(t)
	ctx := context.Background()

	t.Run("open day renders slots tag", func(t *testing.T) {
		out := registry.Dispatch(ctx, "check_availability", map[string]any{"date": "2025-06-02"})
		assert.Contains(t, out, "||SLOTS: 10:00, 11:00, 12:00||")
	})

	t.Run("closed day names the weekday", func(t *testing.T) {
		out := registry.Dispatch(ctx, "check_availability", map[string]any{"date": "2025-06-01"})
		assert.Contains(t, out, "closed on Sundays")
		assert.NotContains(t, out, "||SLOTS")
	})

	t.Run("fully booked is not closed", func(t *testing.T) {
		for _, clock := range []string{"10:00", "11:00", "12:00"} {
			p := ledger.CreateBookingParams{
				CustomerName:  "Asha",
				CustomerEmail: "asha@x.com",
				CustomerPhone: "9998887777",
				ServiceName:   "Haircut",
				Date:          "2025-06-03",
				Time:          clock,
			}
			_, err := l.CreateBooking(ctx, p)
			require.NoError(t, err)
		}
		out := registry.Dispatch(ctx, "check_availability", map[string]any{"date": "2025-06-03"})
		assert.Contains(t, out, "already booked")
		assert.NotContains(t, out, "closed")
	})

	t.Run("malformed date", func(t *testing.T) {
		out := registry.Dispatch(ctx, "check_availability", map[string]any{"date": "3rd June"})
		assert.Contains(t, out, "YYYY-MM-DD")
	})
}

func TestToolCreateBooking(t *testing.T) {
	registry, _ := testRegistry(t)
	ctx := context.Background()

	out := registry.Dispatch(ctx, "create_booking", bookingArgs())
	assert.Contains(t, out, "Booking Successful. ||ID:")

	t.Run("slot taken on repeat", func(t *testing.T) {
		out := registry.Dispatch(ctx, "create_booking", bookingArgs())
		assert.Contains(t, out, "already booked")
	})

	t.Run("placeholder contact", func(t *testing.T) {
		args := bookingArgs()
		args["customer_name"] = "Unknown"
		args["booking_time"] = "11:00"
		out := registry.Dispatch(ctx, "create_booking", args)
		assert.Contains(t, out, "placeholder")
	})

	t.Run("unknown service", func(t *testing.T) {
		args := bookingArgs()
		args["service_name"] = "tattoo"
		args["booking_time"] = "11:00"
		out := registry.Dispatch(ctx, "create_booking", args)
		assert.Contains(t, out, "Service not found")
	})

	t.Run("closed day", func(t *testing.T) {
		args := bookingArgs()
		args["booking_date"] = "2025-06-01"
		out := registry.Dispatch(ctx, "create_booking", args)
		assert.Contains(t, out, "closed")
	})
}

func TestToolGetBookingDetails(t *testing.T) {
	registry, l := testRegistry(t)
	ctx := context.Background()

	booking, err := l.CreateBooking(ctx, ledger.CreateBookingParams{
		CustomerName:  "Asha",
		CustomerEmail: "asha@x.com",
		CustomerPhone: "9998887777",
		ServiceName:   "Facial",
		Date:          "2025-06-02",
		Time:          "12:00",
	})
	require.NoError(t, err)

	t.Run("id as string", func(t *testing.T) {
		out := registry.Dispatch(ctx, "get_booking_details", map[string]any{
			"booking_id": fmt.Sprintf("%d", booking.ID),
		})
		assert.Contains(t, out, "Service: Facial")
		assert.Contains(t, out, "Status: PENDING")
	})

	t.Run("id as number", func(t *testing.T) {
		out := registry.Dispatch(ctx, "get_booking_details", map[string]any{
			"booking_id": float64(booking.ID),
		})
		assert.Contains(t, out, fmt.Sprintf("Booking #%d", booking.ID))
	})

	t.Run("unknown id", func(t *testing.T) {
		out := registry.Dispatch(ctx, "get_booking_details", map[string]any{"booking_id": "424242"})
		assert.Contains(t, out, "not found")
	})

	t.Run("garbage id", func(t *testing.T) {
		out := registry.Dispatch(ctx, "get_booking_details", map[string]any{"booking_id": "abc"})
		assert.Contains(t, out, "must be a number")
	})
}

func TestRegistryDispatchUnknownTool(t *testing.T) {
	registry, _ := testRegistry(t)
	out := registry.Dispatch(context.Background(), "summon_unicorn", nil)
	assert.Contains(t, out, "Unknown tool")
}

func TestRegistryDeclarations(t *testing.T) {
	registry, _ := testRegistry(t)
	decls := registry.Declarations()
	require.Len(t, decls, 5)
	// Declaration order is the registration order.
	assert.Equal(t, "list_all_services", decls[0].Name)
	assert.Equal(t, "create_booking", decls[3].Name)
}
