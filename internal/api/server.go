// Package api exposes the chat endpoint and the booking REST surface
// over the ledger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"flawless/internal/export"
	"flawless/internal/ledger"
	"flawless/internal/metrics"
)

// ChatAgent is the conversational collaborator behind POST /chat.
type ChatAgent interface {
	Chat(ctx context.Context, conversationID, message string, loggedIn bool) (string, error)
}

// Options configures the HTTP server.
type Options struct {
	// AdminKey guards the administrative endpoints via the x-api-key
	// header. Empty disables them.
	AdminKey string
	// ChatRatePerMinute and ChatBurst bound per-client chat traffic.
	ChatRatePerMinute int
	ChatBurst         int
}

// Server routes HTTP traffic to the ledger and the agent.
type Server struct {
	ledger   *ledger.Ledger
	agent    ChatAgent
	adminKey string
	limiter  *visitorLimiter
	logger   *zerolog.Logger
}

// NewServer creates the HTTP server. agent may be nil, in which case
// the chat endpoint reports the assistant as unavailable.
func NewServer(l *ledger.Ledger, agent ChatAgent, opts Options, logger *zerolog.Logger) *Server {
	if opts.ChatRatePerMinute <= 0 {
		opts.ChatRatePerMinute = 20
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = 5
	}
	return &Server{
		ledger:   l,
		agent:    agent,
		adminKey: opts.AdminKey,
		limiter:  newVisitorLimiter(opts.ChatRatePerMinute, opts.ChatBurst),
		logger:   logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /api/services", s.handleListServices)
	mux.HandleFunc("GET /api/availability", s.handleAvailability)
	mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /api/bookings/export", s.handleExportBookings)
	mux.HandleFunc("GET /api/bookings/{id}", s.handleGetBooking)
	mux.HandleFunc("PATCH /api/bookings/{id}/status", s.handleUpdateStatus)
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	go s.cleanupLoop(ctx)

	s.logger.Info().Int("port", port).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Cleanup(time.Hour)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeLedgerError maps the ledger's error taxonomy to HTTP statuses.
// NotFound outcomes are expected and not logged as errors.
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidContactInfo):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrSlotTaken):
		metrics.IncSlotConflict()
		writeError(w, http.StatusConflict, "this time slot is already booked")
	case errors.Is(err, ledger.ErrClosed):
		writeError(w, http.StatusConflict, "the salon is closed on this day")
	default:
		s.logger.Error().Err(err).Msg("store error")
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	}
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	IsLoggedIn     bool   `json:"is_logged_in"`
}

// ChatResponse is the reply of POST /chat.
type ChatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("chat")

	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}
	if !s.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many requests; slow down")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	reply, err := s.agent.Chat(r.Context(), req.ConversationID, req.Message, req.IsLoggedIn)
	if err != nil {
		s.logger.Error().Err(err).Str("conversation", req.ConversationID).Msg("chat turn failed")
		writeJSON(w, http.StatusOK, ChatResponse{
			Reply:          "I'm having a brief brain freeze. Please try asking again.",
			ConversationID: req.ConversationID,
		})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, ConversationID: req.ConversationID})
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("services")

	services, err := s.ledger.ListActiveServices(r.Context())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// AvailabilityResponse is the reply of GET /api/availability.
type AvailabilityResponse struct {
	Date           string   `json:"date"`
	AvailableSlots []string `json:"available_slots"`
	Closed         bool     `json:"closed"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date parameter is required")
		return
	}

	free, err := s.ledger.Availability(r.Context(), date)
	if errors.Is(err, ledger.ErrClosed) {
		// Closed is a distinct outcome, not an empty slot list.
		writeJSON(w, http.StatusOK, AvailabilityResponse{Date: date, AvailableSlots: []string{}, Closed: true})
		return
	}
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	if free == nil {
		free = []string{}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{Date: date, AvailableSlots: free})
}

// CreateBookingRequest is the body of POST /api/bookings.
type CreateBookingRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	ServiceID     int64  `json:"service_id,omitempty"`
	ServiceName   string `json:"service_name,omitempty"`
	BookingDate   string `json:"booking_date"`
	BookingTime   string `json:"booking_time"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.ledger.CreateBooking(r.Context(), ledger.CreateBookingParams{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		ServiceID:     req.ServiceID,
		ServiceName:   req.ServiceName,
		Date:          req.BookingDate,
		Time:          req.BookingTime,
	})
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	metrics.IncBookingCreated()
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_booking")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "booking id must be a number")
		return
	}

	booking, err := s.ledger.GetBookingByID(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *Server) authorized(r *http.Request) bool {
	return s.adminKey != "" && r.Header.Get("x-api-key") == s.adminKey
}

// UpdateStatusRequest is the body of PATCH /api/bookings/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_status")

	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "booking id must be a number")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.ledger.UpdateBookingStatus(r.Context(), id, req.Status); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	booking, err := s.ledger.GetBookingByID(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *Server) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_bookings")

	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to parameters are required")
		return
	}

	bookings, err := s.ledger.ListBookingsRange(r.Context(), from, to)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=bookings_%s_%s.xlsx", from, to))
	if err := export.WriteBookings(w, bookings); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}
