package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
	"github.com/BrandonDHaskell/Janus/server/internal/metrics"
)

type Dependencies struct {
	Logger        *slog.Logger
	Addr          string
	Reconciler    *service.Reconciler
	MemberService *service.MemberService
	Metrics       *metrics.Metrics
}

type Server struct {
	httpServer    *http.Server
	logger        *slog.Logger
	router        chi.Router
	reconciler    *service.Reconciler
	memberService *service.MemberService
	metrics       *metrics.Metrics

	// Websocket streams are hijacked, so http.Server.Shutdown neither
	// cancels nor waits for them.  closing ends them and streams tracks them.
	streamMu sync.Mutex
	closing  chan struct{}
	shut     bool
	streams  sync.WaitGroup
}

func NewServer(d Dependencies) *Server {
	r := chi.NewRouter()

	s := &Server{
		logger:        d.Logger,
		router:        r,
		reconciler:    d.Reconciler,
		memberService: d.MemberService,
		metrics:       d.Metrics,
		closing:       make(chan struct{}),
	}

	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(d.Logger))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/identity", s.handleIdentity)
		r.Post("/identity/dismiss", s.handleDismiss)
		r.Get("/identity/stream", s.handleIdentityStream)

		r.Get("/members", s.handleListMembers)
		r.Post("/members", s.handleCreateMember)
		r.Get("/members/{id}", s.handleGetMember)
		r.Put("/members/{id}", s.handleUpdateMember)

		r.Post("/attendance", s.handleAttendance)
		r.Get("/reports/attendance", s.handleAttendanceReport)
		r.Get("/enrollments/pending", s.handlePendingEnrollments)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections, ends open identity streams, and
// waits for in-flight requests and streams until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.streamMu.Lock()
	if !s.shut {
		s.shut = true
		close(s.closing)
	}
	s.streamMu.Unlock()

	err := s.httpServer.Shutdown(ctx)

	drained := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// trackStream registers a new stream unless Shutdown has begun.
func (s *Server) trackStream() bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.shut {
		return false
	}
	s.streams.Add(1)
	return true
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ── Identity ─────────────────────────────────────────────────────────────────

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	snap := s.reconciler.Display().Current()
	if wantsProtobuf(r) {
		msg, err := snapshotToProto(snap)
		if err != nil {
			s.internalError(w, r, "identity encode", err)
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDismiss(w http.ResponseWriter, _ *http.Request) {
	s.reconciler.Dismiss()
	writeJSON(w, http.StatusOK, s.reconciler.Display().Current())
}

// ── Members ──────────────────────────────────────────────────────────────────

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.memberService.List(r.Context())
	if err != nil {
		s.internalError(w, r, "list members", err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := memberIDParam(w, r)
	if !ok {
		return
	}
	m, err := s.memberService.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, "get member", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req types.CreateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.memberService.Create(r.Context(), req)
	if err != nil {
		s.serviceError(w, r, "create member", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := memberIDParam(w, r)
	if !ok {
		return
	}
	var req types.UpdateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.memberService.Update(r.Context(), id, req)
	if err != nil {
		s.serviceError(w, r, "update member", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ── Attendance ───────────────────────────────────────────────────────────────

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	var req types.AttendanceRequest

	if isProtobuf(r) {
		var err error
		req, err = readAttendanceProto(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
	} else if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.memberService.RecordManualAttendance(r.Context(), req.MemberID)
	if err != nil {
		s.serviceError(w, r, "record attendance", err)
		return
	}

	if isProtobuf(r) {
		msg, err := attendanceResponseToProto(resp)
		if err != nil {
			s.internalError(w, r, "attendance encode", err)
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAttendanceReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.memberService.Report(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.serviceError(w, r, "attendance report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handlePendingEnrollments(w http.ResponseWriter, r *http.Request) {
	pending, err := s.memberService.PendingEnrollments(r.Context())
	if err != nil {
		s.internalError(w, r, "pending enrollments", err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func memberIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_member_id", service.ErrInvalidMemberID.Error())
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

// serviceError maps service sentinels to status codes.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidMemberID):
		writeError(w, http.StatusBadRequest, "invalid_member_id", err.Error())
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "missing_fields", err.Error())
	case errors.Is(err, service.ErrActiveRequired):
		writeError(w, http.StatusBadRequest, "invalid_active", err.Error())
	case errors.Is(err, service.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, service.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "member_not_found", err.Error())
	case errors.Is(err, service.ErrMemberExists):
		writeError(w, http.StatusConflict, "member_exists", err.Error())
	default:
		s.internalError(w, r, op, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), op+" failed",
		"request_id", requestIDFrom(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
