package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"flawless/internal/ledger"
	"flawless/internal/metrics"
	"flawless/internal/slots"
)

// Tool maps a stable action name to a typed handler with a declared
// argument schema. The registry is a static table built at startup, not
// runtime introspection.
type Tool struct {
	Name        string
	Description string
	Schema      *genai.Schema
	Handler     func(ctx context.Context, args map[string]any) string
}

// Registry holds the agent's tools in declaration order.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// Declarations returns the function declarations for the model.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema,
		})
	}
	return decls
}

// Dispatch runs the named tool. Unknown names and handler outcomes are
// returned as tool output for the model to phrase, never as faults.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) string {
	t, ok := r.tools[name]
	if !ok {
		metrics.IncToolCall(name, "unknown")
		return fmt.Sprintf("Unknown tool %q.", name)
	}
	out := t.Handler(ctx, args)
	metrics.IncToolCall(name, "ok")
	return out
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// intArg tolerates the id arriving as a JSON number or a string.
func intArg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil
	}
	return 0, false
}

// NewToolset builds the five booking tools over the ledger. Handler
// output is plain text (or compact JSON) for the model to phrase; the
// control tags ||SLOTS: ...|| and ||ID:...|| are generated here so the
// model only has to repeat them verbatim.
func NewToolset(l *ledger.Ledger, salonInfo string) *Registry {
	return NewRegistry(
		Tool{
			Name:        "list_all_services",
			Description: "Returns the complete list of salon services with duration and price.",
			Schema:      &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}},
			Handler: func(ctx context.Context, _ map[string]any) string {
				services, err := l.ListActiveServices(ctx)
				if err != nil {
					// Store faults mean "temporarily unavailable", never
					// "no services exist".
					return "The service list is temporarily unavailable. Apologize and ask the guest to try again shortly."
				}
				if len(services) == 0 {
					return "No services found."
				}
				var sb strings.Builder
				sb.WriteString("| Service | Duration | Price |\n| :--- | :--- | :--- |\n")
				for _, s := range services {
					fmt.Fprintf(&sb, "| %s | %d mins | ₹%.0f |\n", s.Name, s.Duration, s.Price)
				}
				return sb.String()
			},
		},
		Tool{
			Name:        "get_salon_info",
			Description: "Returns general salon information: location, hours, contact.",
			Schema:      &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}},
			Handler: func(_ context.Context, _ map[string]any) string {
				return salonInfo
			},
		},
		Tool{
			Name:        "check_availability",
			Description: "Returns the free appointment slots for a date (YYYY-MM-DD).",
			Schema: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"date": {Type: genai.TypeString, Description: "Calendar date in YYYY-MM-DD format."},
				},
				Required: []string{"date"},
			},
			Handler: func(ctx context.Context, args map[string]any) string {
				date := stringArg(args, "date")
				free, err := l.Availability(ctx, date)
				switch {
				case errors.Is(err, ledger.ErrClosed):
					return fmt.Sprintf("The salon is closed on %ss. Ask the guest to pick another day.", weekdayName(date))
				case errors.Is(err, ledger.ErrInvalidArgument):
					return "The date must be in YYYY-MM-DD format. Ask the guest for a valid date."
				case err != nil:
					return "The booking system is temporarily unavailable. Apologize and ask the guest to try again shortly."
				}
				if len(free) == 0 {
					return fmt.Sprintf("Every slot on %s is already booked. Suggest a different day.", date)
				}
				return fmt.Sprintf("Free slots on %s. Present them exactly as: ||SLOTS: %s|| and ask the guest to pick one.",
					date, strings.Join(free, ", "))
			},
		},
		Tool{
			Name:        "create_booking",
			Description: "Creates a salon booking once service, date, time, name, phone and email are all known.",
			Schema: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"customer_name":  {Type: genai.TypeString, Description: "Guest's real full name."},
					"customer_email": {Type: genai.TypeString, Description: "Guest's email address."},
					"customer_phone": {Type: genai.TypeString, Description: "Guest's phone number."},
					"service_name":   {Type: genai.TypeString, Description: "Name of the service to book."},
					"booking_date":   {Type: genai.TypeString, Description: "Date in YYYY-MM-DD format."},
					"booking_time":   {Type: genai.TypeString, Description: "Slot time in 24-hour HH:MM format."},
				},
				Required: []string{"customer_name", "customer_email", "customer_phone", "service_name", "booking_date", "booking_time"},
			},
			Handler: func(ctx context.Context, args map[string]any) string {
				booking, err := l.CreateBooking(ctx, ledger.CreateBookingParams{
					CustomerName:  stringArg(args, "customer_name"),
					CustomerEmail: stringArg(args, "customer_email"),
					CustomerPhone: stringArg(args, "customer_phone"),
					ServiceName:   stringArg(args, "service_name"),
					Date:          stringArg(args, "booking_date"),
					Time:          stringArg(args, "booking_time"),
				})
				switch {
				case err == nil:
					metrics.IncBookingCreated()
					return fmt.Sprintf("Booking Successful. ||ID:%d||", booking.ID)
				case errors.Is(err, ledger.ErrSlotTaken):
					metrics.IncSlotConflict()
					return "That time slot is already booked. Ask the guest to pick a different time."
				case errors.Is(err, ledger.ErrServiceNotFound):
					return "Service not found. Ask the guest for the exact service name."
				case errors.Is(err, ledger.ErrInvalidContactInfo):
					return "The contact details look incomplete or placeholder-like. Ask the guest for their real name, email and phone."
				case errors.Is(err, ledger.ErrClosed):
					return "The salon is closed on that day. Ask the guest to pick another date."
				case errors.Is(err, ledger.ErrInvalidArgument):
					return "The date or time is not valid. Dates are YYYY-MM-DD and times must be one of the offered HH:MM slots."
				default:
					return "The booking system is temporarily unavailable. Apologize and ask the guest to try again shortly."
				}
			},
		},
		Tool{
			Name:        "get_booking_details",
			Description: "Returns the status and details of a booking by its id.",
			Schema: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"booking_id": {Type: genai.TypeString, Description: "The booking id."},
				},
				Required: []string{"booking_id"},
			},
			Handler: func(ctx context.Context, args map[string]any) string {
				id, ok := intArg(args, "booking_id")
				if !ok {
					return "The booking id must be a number."
				}
				detail, err := l.GetBookingByID(ctx, id)
				switch {
				case errors.Is(err, ledger.ErrNotFound):
					return "Booking ID not found."
				case errors.Is(err, ledger.ErrInvalidArgument):
					return "The booking id must be a positive number."
				case err != nil:
					return "The booking system is temporarily unavailable. Apologize and ask the guest to try again shortly."
				}
				return fmt.Sprintf("Booking #%d\nService: %s\nDate: %s\nTime: %s\nStatus: %s\nName: %s",
					detail.ID, detail.ServiceName, detail.BookingDate, detail.BookingTime,
					strings.ToUpper(detail.Status), detail.CustomerName)
			},
		},
	)
}

// weekdayName names the weekday of a date the ledger reported closed.
// Availability already validated the date; re-parse just for the name.
func weekdayName(date string) string {
	d, err := slots.ParseDate(date)
	if err != nil {
		return "closed day"
	}
	return d.Weekday().String()
}
