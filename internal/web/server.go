// Package web exposes the engine operations over a JSON API plus the
// inbound-reply webhook that feeds the reply ledger. No auth and no
// signature verification here; both belong to collaborators in front of
// this process.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/pcmrules/TableBack/internal/engine"
	"github.com/pcmrules/TableBack/internal/notify"
	"github.com/pcmrules/TableBack/internal/replies"
)

type Server struct {
	Engine *engine.Engine
	Ledger *replies.CacheLedger
	Feed   *notify.Recorder // optional; nil disables /api/notifications
	Clock  engine.Clock
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/reservations", s.handleAddReservation).Methods(http.MethodPost)
	api.HandleFunc("/reservations/{id}", s.handleRemoveReservation).Methods(http.MethodDelete)
	api.HandleFunc("/waitlist", s.handleAddEntry).Methods(http.MethodPost)
	api.HandleFunc("/waitlist/{id}", s.handleRemoveEntry).Methods(http.MethodDelete)
	api.HandleFunc("/waitlist/{id}/contact", s.handleContactEntry).Methods(http.MethodPost)
	api.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)

	r.HandleFunc("/webhooks/replies", s.handleInboundReply).Methods(http.MethodPost)

	return r
}

// Start serves handler on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	log.Info().Str("addr", addr).Msg("HTTP server listening")

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return ctx.Err()
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type reservationRequest struct {
	Name             string  `json:"name"`
	Phone            string  `json:"phone"`
	Time             string  `json:"time"`
	PartySize        int     `json:"party_size"`
	EstimatedRevenue float64 `json:"estimated_revenue"`
}

func (s *Server) handleAddReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.Engine.AddReservation(engine.Reservation{
		Name:             req.Name,
		Phone:            req.Phone,
		Time:             req.Time,
		PartySize:        req.PartySize,
		EstimatedRevenue: req.EstimatedRevenue,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleRemoveReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Engine.RemoveReservation(id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type waitlistRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	PartySize int    `json:"party_size"`
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req waitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	entry, err := s.Engine.AddWaitlistEntry(engine.WaitlistEntry{
		Name:      req.Name,
		Phone:     req.Phone,
		PartySize: req.PartySize,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Engine.RemoveWaitlistEntry(id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContactEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Engine.ContactWaitlistEntry(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	if s.Feed == nil {
		writeJSON(w, http.StatusOK, []notify.Notification{})
		return
	}
	writeJSON(w, http.StatusOK, s.Feed.All())
}

type inboundReply struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"` // RFC3339; defaults to now
}

// handleInboundReply is the Reply Ledger's write side: classify the free
// text and record the latest reply for the sender's phone.
func (s *Server) handleInboundReply(w http.ResponseWriter, r *http.Request) {
	var in inboundReply
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.From == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return
	}

	at := s.now()
	if in.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, in.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
			return
		}
		at = parsed
	}

	confirmed, declined := replies.Classify(in.Text)
	s.Ledger.Set(in.From, replies.Reply{
		Confirmed: confirmed,
		Declined:  declined,
		LastReply: in.Text,
		UpdatedAt: at,
	})

	log.Debug().Str("from", in.From).Bool("confirmed", confirmed).Bool("declined", declined).Msg("inbound reply recorded")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusConflict, err.Error())
}
