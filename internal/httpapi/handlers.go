package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rmacdonaldsmith/inputlog/internal/control"
	"github.com/rmacdonaldsmith/inputlog/internal/daemon"
	"github.com/rmacdonaldsmith/inputlog/internal/recordfilter"
	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// maxRequestBody bounds JSON request bodies
const maxRequestBody = 64 << 10

// Handlers contains all HTTP request handlers
type Handlers struct {
	node      *daemon.Node
	jwtAuth   *JWTAuth
	logger    *slog.Logger
	keepalive time.Duration
}

// NewHandlers creates a new handlers instance
func NewHandlers(node *daemon.Node, jwtAuth *JWTAuth, logger *slog.Logger, keepalive time.Duration) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	return &Handlers{
		node:      node,
		jwtAuth:   jwtAuth,
		logger:    logger,
		keepalive: keepalive,
	}
}

// Auth endpoints

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.validateAuthRequest(&req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// No credential store: the client id is the identity
	isAdmin := req.ClientID == AdminClientID

	token, expiresAt, err := h.jwtAuth.GenerateToken(req.ClientID, isAdmin)
	if err != nil {
		h.writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, AuthResponse{
		Token:     token,
		ClientID:  req.ClientID,
		IsAdmin:   isAdmin,
		ExpiresAt: expiresAt,
	}, http.StatusOK)
}

// Event endpoints

// AppendEvent handles POST /api/v1/events. A full buffer is not an error for
// a producer, so rejected and oversized records still get 202 and the outcome
// is reported in the body. Only a closed buffer fails the request.
func (h *Handlers) AppendEvent(w http.ResponseWriter, r *http.Request) {
	var req AppendRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Event == "" {
		h.writeError(w, "event is required", http.StatusBadRequest)
		return
	}

	outcome, evicted := h.node.Store().Offer(req.Event)
	if outcome == eventbuf.OutcomeClosed {
		h.writeError(w, eventbuf.ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	resp := AppendResponse{
		Status:    outcome.String(),
		Evicted:   evicted,
		Timestamp: time.Now(),
	}
	if outcome == eventbuf.OutcomeStored {
		resp.Bytes = len(req.Event) + 1
	}
	h.writeJSON(w, resp, http.StatusAccepted)
}

// DrainEvents handles GET /api/v1/events?nonblock=true&max=N. A block taken
// for a caller that has already gone is restored to the buffer. Once the
// response is written delivery is at-most-once: a connection that breaks
// while the body is in flight loses the block.
func (h *Handlers) DrainEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	nonBlocking := false
	if v := query.Get("nonblock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, "nonblock must be a boolean", http.StatusBadRequest)
			return
		}
		nonBlocking = b
	}

	limit := 0
	if v := query.Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, "max must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if !nonBlocking {
		clearWriteDeadline(w)
	}

	var (
		data string
		err  error
	)
	if limit > 0 {
		buf := make([]byte, limit)
		var n int
		n, err = h.node.Store().DrainInto(r.Context(), buf, nonBlocking)
		data = string(buf[:n])
	} else {
		data, err = h.node.Store().Drain(r.Context(), nonBlocking)
	}
	if err != nil {
		h.writeDrainError(w, r, err)
		return
	}
	if r.Context().Err() != nil {
		// The caller left while the block was being taken
		h.node.Store().Restore(data)
		return
	}

	h.writeJSON(w, DrainResponse{
		Data:    data,
		Records: recordfilter.Split(data),
		Bytes:   len(data),
	}, http.StatusOK)
}

// writeDrainError maps buffer errors to HTTP statuses
func (h *Handlers) writeDrainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, eventbuf.ErrWouldBlock):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, eventbuf.ErrShortBuffer):
		h.writeError(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, eventbuf.ErrInterrupted):
		// The caller went away; there is nobody to answer
		h.logger.Debug("drain interrupted", "request_id", GetRequestID(r), "error", err)
	case errors.Is(err, eventbuf.ErrClosed):
		h.writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.writeError(w, fmt.Sprintf("Failed to drain events: %v", err), http.StatusInternalServerError)
	}
}

// StreamEvents handles GET /api/v1/events/stream. It is a consumer: every
// block it drains is sent to this client only. A block whose write fails is
// restored to the front of the buffer for the next consumer.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	clearWriteDeadline(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte(": SSE connection established\n\n")); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	logger := h.logger.With("request_id", GetRequestID(r), "client_id", GetClientID(r))
	logger.Info("stream consumer attached")
	defer logger.Info("stream consumer detached")

	var sequence uint64
	for {
		block, err := h.nextBlock(ctx)
		if err != nil {
			if errors.Is(err, eventbuf.ErrClosed) {
				w.Write([]byte("event: close\ndata: {}\n\n"))
				flusher.Flush()
			}
			return
		}

		if block == "" {
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
			continue
		}

		records, err := filter.Apply(block)
		if err != nil {
			logger.Warn("filter failed, block skipped", "error", err)
			continue
		}
		if len(records) == 0 {
			continue
		}

		sequence++
		msg := StreamMessage{
			Sequence:  sequence,
			Records:   records,
			Bytes:     len(block),
			Timestamp: time.Now(),
		}
		if err := h.writeSSEMessage(w, msg); err != nil {
			h.node.Store().Restore(block)
			logger.Warn("stream write failed, block restored", "bytes", len(block), "error", err)
			return
		}
		flusher.Flush()
	}
}

// nextBlock drains the buffer, waiting at most one keepalive interval. An
// empty block with a nil error means the interval passed without data; the
// buffer is untouched in that case.
func (h *Handlers) nextBlock(ctx context.Context) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, h.keepalive)
	defer cancel()

	block, err := h.node.Store().Drain(waitCtx, false)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return "", nil
	}
	return block, err
}

// Admin endpoints

// AdminControl handles POST /api/v1/admin/control
func (h *Handlers) AdminControl(w http.ResponseWriter, r *http.Request) {
	var req ControlRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	cmd, err := parseControlCommand(req.Command)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.node.Dispatcher().Control(r.Context(), cmd); err != nil {
		if errors.Is(err, eventbuf.ErrUnsupportedCommand) {
			h.writeError(w, err.Error(), http.StatusNotImplemented)
			return
		}
		h.writeError(w, fmt.Sprintf("Control failed: %v", err), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, ControlResponse{
		Command: cmd.String(),
		Code:    uint32(cmd),
		Status:  "ok",
	}, http.StatusOK)
}

// AdminReset handles POST /api/v1/admin/reset
func (h *Handlers) AdminReset(w http.ResponseWriter, r *http.Request) {
	if err := h.node.Dispatcher().Control(r.Context(), control.CommandClear); err != nil {
		h.writeError(w, fmt.Sprintf("Reset failed: %v", err), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, ControlResponse{
		Command: control.CommandClear.String(),
		Code:    uint32(control.CommandClear),
		Status:  "ok",
	}, http.StatusOK)
}

// AdminGetStats handles GET /api/v1/admin/stats
func (h *Handlers) AdminGetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, statsResponse(h.node.Store().Stats()), http.StatusOK)
}

// statsResponse converts a buffer snapshot to its wire form
func statsResponse(stats eventbuf.Stats) StatsResponse {
	return StatsResponse{
		Capacity:  stats.Capacity,
		Length:    stats.Length,
		HasData:   stats.HasData,
		Policy:    stats.Policy.String(),
		Appended:  stats.Appended,
		Evicted:   stats.Evicted,
		Rejected:  stats.Rejected,
		Oversized: stats.Oversized,
		Drains:    stats.Drains,
		Resets:    stats.Resets,
	}
}

// Health endpoint

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.node.GetHealth(r.Context())
	if err != nil {
		h.writeError(w, "Failed to get health status", http.StatusInternalServerError)
		return
	}

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, HealthResponse{
		Healthy:   health.Healthy,
		NodeID:    health.NodeID,
		Ingesting: health.Ingesting,
		Ingested:  health.Ingested,
		Ignored:   health.Ignored,
		Buffered:  health.Buffer.Length,
		Capacity:  health.Buffer.Capacity,
		Message:   health.Message,
	}, statusCode)
}

// Helper methods

// writeError writes an error response as JSON
func (h *Handlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	writeError(w, message, statusCode)
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	writeJSON(w, data, statusCode)
}

// decodeJSON checks the content type and decodes the body into v. On
// failure it writes a 400 and returns false.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// validateJSON validates that the request has valid JSON content-type
func (h *Handlers) validateJSON(r *http.Request) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	return nil
}

// validateAuthRequest validates authentication request fields
func (h *Handlers) validateAuthRequest(req *AuthRequest) error {
	if req.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if len(req.ClientID) < 2 {
		return fmt.Errorf("clientId must be at least 2 characters")
	}
	return nil
}

// parseFilter builds the record filter from the match and filter query
// parameters
func (h *Handlers) parseFilter(r *http.Request) (*recordfilter.Filter, error) {
	query := r.URL.Query()
	return recordfilter.New(query.Get("match"), query.Get("filter"))
}

// parseControlCommand accepts a JSON string ("clear", "0x4d01") or number
func parseControlCommand(raw json.RawMessage) (control.Command, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("command is required")
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return control.ParseCommand(name)
	}

	var number uint32
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, fmt.Errorf("command must be a name or a number")
	}
	return control.Command(number), nil
}

// writeSSEMessage writes a StreamMessage as a properly formatted SSE data message
func (h *Handlers) writeSSEMessage(w http.ResponseWriter, message StreamMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE message: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", message.Sequence, jsonData)
	return err
}

// clearWriteDeadline lifts the server write timeout for long-lived responses
func clearWriteDeadline(w http.ResponseWriter) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
}
