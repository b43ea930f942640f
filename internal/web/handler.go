// internal/web/handler.go
//
// HTTP surface of the intake form.
//
// Context
//   The browser never holds a long-lived controller.  Each POST builds one,
//   copies the posted values into it, runs a single submit, and disposes it
//   when the handler returns, so a client that disconnects mid-request has
//   its late result discarded instead of applied to a view nobody sees.
//
// Routes
//   GET  /patients/new               empty form with a fresh CSRF token
//   POST /patients/new               submit; 303 on success, re-render else
//   GET  /patients/{id}/created      confirmation page
//   GET  /healthz                    liveness
//   GET  /metrics                    Prometheus scrape
//
// Status codes on re-render
//   403  stale or forged token, values kept, nothing sent
//   422  field errors
//   502  creation endpoint failed (message from intake.SafeMessage)
//
//------------------------------------------------------------------------------

package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/intake/internal/form"
	"github.com/yanizio/intake/internal/intake"
	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/middleware"
)

// MsgExpired is shown when the CSRF token no longer verifies.
const MsgExpired = "Your session expired.  Please review the form and submit again."

const newPath = "/patients/new"

//go:embed templates/page.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// Options configure a Handler.
type Options struct {
	Form       *form.FormDef // nil means form.Default()
	Signer     *form.Signer
	Creator    intake.Creator
	Logger     *zap.SugaredLogger
	Clock      func() time.Time // nil means time.Now
	ForceHTTPS bool
}

// Handler owns the shared, read-only dependencies of every request.
type Handler struct {
	fd        *form.FormDef
	signer    *form.Signer
	creator   intake.Creator
	validator *intake.Validator
	log       *zap.SugaredLogger
	now       func() time.Time
	forceTLS  bool
}

// New validates opts and returns a Handler.
func New(opts Options) (*Handler, error) {
	if opts.Signer == nil || opts.Creator == nil {
		return nil, errors.New("web: signer and creator are required")
	}
	h := &Handler{
		fd:       opts.Form,
		signer:   opts.Signer,
		creator:  opts.Creator,
		log:      opts.Logger,
		now:      opts.Clock,
		forceTLS: opts.ForceHTTPS,
	}
	if h.fd == nil {
		h.fd = form.Default()
	}
	if h.log == nil {
		h.log = zap.NewNop().Sugar()
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.validator = intake.NewValidator(h.now)
	return h, nil
}

// Routes assembles the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(h.log))
	r.Use(chimw.Recoverer)
	if h.forceTLS {
		r.Use(middleware.ForceHTTPS)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Security)
		r.Get(newPath, h.showForm)
		r.Post(newPath, h.submitForm)
		r.Get("/patients/{id}/created", h.created)
	})
	return r
}

/*──────────────────────────── handlers ────────────────────────────────────*/

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r, nil)
	defer ctrl.Dispose()
	h.renderForm(w, r, http.StatusOK, ctrl.View())
}

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var redirect string
	ctrl := h.controller(r, func(ref intake.CreatedPatientRef) {
		redirect = "/patients/" + url.PathEscape(ref.ID) + "/created"
	})
	defer ctrl.Dispose()

	out, err := form.HandleSubmit(r, h.signer, ctrl)
	switch {
	case errors.Is(err, form.ErrBadToken):
		log.Warnw("csrf token rejected")
		if aerr := form.ApplyPosted(ctrl, r.PostForm); aerr != nil {
			log.Warnw("posted values not applied", "err", aerr)
		}
		v := ctrl.View()
		v.Message = MsgExpired
		h.renderForm(w, r, http.StatusForbidden, v)
		return
	case err != nil:
		log.Warnw("submit rejected", "err", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	switch out {
	case intake.OutcomeSucceeded:
		http.Redirect(w, r, redirect, http.StatusSeeOther)
	case intake.OutcomeInvalid:
		h.renderForm(w, r, http.StatusUnprocessableEntity, ctrl.View())
	case intake.OutcomeFailed:
		h.renderForm(w, r, http.StatusBadGateway, ctrl.View())
	default:
		// Ignored or discarded: the request context ended under us.
		log.Warnw("submit not applied", "outcome", out.String())
		http.Error(w, intake.MsgGeneric, http.StatusServiceUnavailable)
	}
}

func (h *Handler) created(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	data := struct{ ID, Again string }{chi.URLParam(r, "id"), newPath}
	if err := pages.ExecuteTemplate(&body, "created", data); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writePage(w, r, http.StatusOK, "Patient registered", template.HTML(body.String()))
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// controller returns a per-request controller that logs through the request
// logger.
func (h *Handler) controller(r *http.Request, onSuccess func(intake.CreatedPatientRef)) *intake.Controller {
	opts := []intake.Option{
		intake.WithValidator(h.validator),
		intake.WithClock(h.now),
		intake.WithLogger(logger.FromContext(r.Context())),
	}
	if onSuccess != nil {
		opts = append(opts, intake.WithOnSuccess(onSuccess))
	}
	return intake.New(h.creator, opts...)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, v intake.View) {
	tok, err := h.signer.Generate()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	markup, err := form.Render(h.fd, form.RenderOptions{Action: newPath, CSRFToken: tok, View: v})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writePage(w, r, status, h.fd.Title, markup)
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, status int, title string, body template.HTML) {
	var buf bytes.Buffer
	data := struct {
		Title string
		Body  template.HTML
	}{title, body}
	if err := pages.ExecuteTemplate(&buf, "page", data); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Errorw("render failed", "err", err)
	http.Error(w, intake.MsgGeneric, http.StatusInternalServerError)
}
