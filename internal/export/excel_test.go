package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"flawless/internal/models"
)

func TestWriteBookings(t *testing.T) {
	created := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	bookings := []models.BookingDetail{
		{
			Booking: models.Booking{
				ID: 1, CustomerName: "Asha", CustomerEmail: "asha@x.com",
				CustomerPhone: "9998887777", BookingDate: "2025-06-02",
				BookingTime: "10:00", TotalAmount: 500,
				Status: models.StatusPending, CreatedAt: created,
			},
			ServiceName: "Haircut",
		},
		{
			Booking: models.Booking{
				ID: 2, CustomerName: "Riya", CustomerEmail: "riya@x.com",
				CustomerPhone: "8887776666", BookingDate: "2025-06-02",
				BookingTime: "11:00", TotalAmount: 900,
				Status: models.StatusConfirmed, CreatedAt: created,
			},
			ServiceName: "Facial",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBookings(&buf, bookings))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Status", rows[0][8])
	assert.Equal(t, "Asha", rows[1][4])
	assert.Equal(t, "Facial", rows[2][3])
	assert.Equal(t, "confirmed", rows[2][8])
}

func TestWriteBookings_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBookings(&buf, nil))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	assert.Len(t, rows, 1) // header only
}
