package seat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/snowflow/licensed/internal/auth"
	"github.com/snowflow/licensed/internal/httpserver"
	"github.com/snowflow/licensed/internal/store"
)

// ToolDispatcher forwards a named tool call to whatever handles it; no
// concrete tool is implemented here.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, customerID string, tool string, args json.RawMessage) (any, error)
}

// Handler wires the seat admission protocol to the /mcp/* routes.
type Handler struct {
	service    *Service
	dispatcher ToolDispatcher
	logger     *slog.Logger
}

// NewHandler builds a Handler. dispatcher may be nil; /mcp/tools/call then
// responds 501 Not Implemented.
func NewHandler(service *Service, dispatcher ToolDispatcher, logger *slog.Logger) *Handler {
	return &Handler{service: service, dispatcher: dispatcher, logger: logger}
}

type connectRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type connectResponse struct {
	ConnectionID string `json:"connectionId"`
	SeatLimit    any    `json:"seatLimit"`
	Active       int    `json:"active"`
}

// Connect handles POST /mcp/connect.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing license key")
		return
	}

	var body connectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	role := store.UserRole(body.Role)
	if body.UserID == "" || (role != store.RoleDeveloper && role != store.RoleStakeholder) {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "userId and role (developer|stakeholder) are required")
		return
	}

	result, err := h.service.TryConnect(r.Context(), ConnectRequest{
		CustomerID:   cust.ID,
		HashedUserID: body.UserID,
		Role:         role,
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	seatLimit := any("unlimited")
	if !result.SeatLimit.IsUnlimited() {
		seatLimit = result.SeatLimit.Count()
	}
	httpserver.Respond(w, http.StatusOK, connectResponse{
		ConnectionID: result.ConnectionID,
		SeatLimit:    seatLimit,
		Active:       result.Active,
	})
}

type heartbeatRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Heartbeat handles POST /mcp/heartbeat.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing license key")
		return
	}

	var body heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	ok, err := h.service.Heartbeat(r.Context(), cust.ID, body.UserID, store.UserRole(body.Role))
	if err != nil {
		h.logger.Error("heartbeat failed", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "heartbeat failed")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"ok": ok})
}

type disconnectRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Disconnect handles POST /mcp/disconnect.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing license key")
		return
	}

	var body disconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	ok, err := h.service.Disconnect(r.Context(), cust.ID, body.UserID, store.UserRole(body.Role))
	if err != nil {
		h.logger.Error("disconnect failed", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "disconnect failed")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"ok": ok})
}

type toolCallRequest struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// ToolsCall handles POST /mcp/tools/call, dispatching to an injected
// ToolDispatcher. With no dispatcher wired, it reports 501.
func (h *Handler) ToolsCall(w http.ResponseWriter, r *http.Request) {
	cust, ok := auth.CustomerFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing license key")
		return
	}
	if h.dispatcher == nil {
		httpserver.RespondError(w, http.StatusNotImplemented, "not_implemented", "no tool dispatcher configured")
		return
	}

	var body toolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), cust.ID.String(), body.Tool, body.Args)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadGateway, "dispatch_failed", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		httpserver.Respond(w, svcErr.Status, map[string]any{
			"error":   string(svcErr.Code),
			"message": svcErr.Message,
			"limit":   svcErr.Limit,
			"active":  svcErr.Active,
			"role":    svcErr.Role,
		})
		return
	}
	h.logger.Error("seat admission failed", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "admission failed")
}
