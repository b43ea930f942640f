// internal/patientsvc/handler.go
//
// POST /patients for local development and integration tests.
//
// Context
//   The intake form needs something to talk to.  This handler accepts the
//   creation payload, stores it, and answers 201 {"id": "..."}.  It does not
//   repeat the form's field validation.  Unknown JSON fields are a 400 so a
//   client that starts sending extra data (a derived age, say) is caught
//   early.  An Idempotency-Key header seen before returns the first id, also
//   when a concurrent request with the same key wins the insert.
//
//------------------------------------------------------------------------------

package patientsvc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/intake/internal/intake"
	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/metrics"
)

const maxBody = 64 << 10

// Store is what the handler needs from Repository.
type Store interface {
	Insert(ctx context.Context, row Row) error
	IDByIdempotencyKey(ctx context.Context, key string) (string, error)
}

// Handler serves the creation endpoint.
type Handler struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewHandler returns a Handler storing rows in s.
func NewHandler(s Store) *Handler {
	return &Handler{store: s, now: time.Now, newID: uuid.NewString}
}

// Mount registers the routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/patients", h.create)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var p intake.Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		metrics.PatientsStoredTotal.WithLabelValues("rejected").Inc()
		log.Infow("payload rejected", "err", err)
		http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		id, err := h.store.IDByIdempotencyKey(r.Context(), key)
		switch {
		case err == nil:
			metrics.PatientsStoredTotal.WithLabelValues("replayed").Inc()
			writeCreated(w, log, id)
			return
		case !errors.Is(err, ErrNotFound):
			h.storageError(w, log, err)
			return
		}
	}

	id := h.newID()
	if err := h.store.Insert(r.Context(), RowFrom(id, key, p, h.now())); err != nil {
		// A concurrent request with the same key won the insert.
		if key != "" && errors.Is(err, ErrDuplicate) {
			if first, lerr := h.store.IDByIdempotencyKey(r.Context(), key); lerr == nil {
				metrics.PatientsStoredTotal.WithLabelValues("replayed").Inc()
				writeCreated(w, log, first)
				return
			}
		}
		h.storageError(w, log, err)
		return
	}
	metrics.PatientsStoredTotal.WithLabelValues("stored").Inc()
	log.Infow("patient stored", "id", id)
	writeCreated(w, log, id)
}

func (h *Handler) storageError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	metrics.PatientsStoredTotal.WithLabelValues("error").Inc()
	log.Errorw("patient storage failed", "err", err)
	http.Error(w, "storage error", http.StatusInternalServerError)
}

func writeCreated(w http.ResponseWriter, log *zap.SugaredLogger, id string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(intake.CreatedPatientRef{ID: id}); err != nil {
		log.Warnw("response write failed", "err", err)
	}
}
