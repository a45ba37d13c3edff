package ws

import (
	"context"
	"encoding/json"

	"cafeplease/internal/lifecycle"
	"cafeplease/internal/model"
	"cafeplease/internal/service"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// CommandHandler handles WebSocket commands
type CommandHandler struct {
	desk *service.Desk
	log  *zap.Logger
}

func NewCommandHandler(desk *service.Desk, log *zap.Logger) *CommandHandler {
	return &CommandHandler{desk: desk, log: log}
}

type transitionFunc func(ctx context.Context, id string) (model.Request, error)

// HandleCommand processes a WebSocket command
func (h *CommandHandler) HandleCommand(ctx context.Context, conn *Conn, cmd map[string]interface{}) {
	op, _ := cmd["op"].(string)
	data, _ := cmd["data"].(map[string]interface{})
	msgID, _ := cmd["id"].(string)

	switch op {
	case "submitRequest":
		h.handleSubmit(ctx, conn, msgID, data)
	case "acceptApproval":
		h.handleOwnTransition(ctx, conn, msgID, data, h.desk.AcceptApproval)
	case "declineApproval":
		h.handleOwnTransition(ctx, conn, msgID, data, h.desk.DeclineApproval)
	case "cancelRequest":
		h.handleOwnTransition(ctx, conn, msgID, data, h.desk.CancelRequest)
	case "endActiveEarly":
		h.handleOwnTransition(ctx, conn, msgID, data, h.desk.EndActiveEarly)
	case "approveRequest":
		h.handleManagerTransition(ctx, conn, msgID, data, func(ctx context.Context, id string) (model.Request, error) {
			return h.desk.ApproveRequest(ctx, id, lifecycle.ActorManager)
		})
	case "rejectRequest":
		h.handleManagerTransition(ctx, conn, msgID, data, h.desk.RejectRequest)
	case "getPosition":
		h.handleGetPosition(ctx, conn, msgID, data)
	case "getQueue":
		h.handleGetQueue(ctx, conn, msgID)
	default:
		h.sendError(conn, msgID, "unknown_command", "Unknown command: "+op)
	}
}

func (h *CommandHandler) handleSubmit(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	codeType, _ := data["codeType"].(string)
	duration, _ := data["duration"].(float64)
	if codeType == "" || duration == 0 {
		h.sendError(conn, msgID, "invalid_input", "codeType and duration required")
		return
	}

	req, err := h.desk.SubmitRequest(ctx, conn.who.UserID, model.CodeType(codeType), int(duration))
	if err != nil {
		h.sendError(conn, msgID, errorCode(err), err.Error())
		return
	}
	h.sendResponse(conn, msgID, req)
}

func (h *CommandHandler) handleOwnTransition(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}, fn transitionFunc) {
	requestID, _ := data["requestId"].(string)
	if requestID == "" {
		h.sendError(conn, msgID, "invalid_input", "requestId required")
		return
	}

	if !conn.who.Role.CanManage() {
		req, err := h.desk.GetRequest(ctx, requestID)
		if err != nil {
			h.sendError(conn, msgID, errorCode(err), err.Error())
			return
		}
		if req.UserID != conn.who.UserID {
			h.sendError(conn, msgID, "forbidden", "request belongs to another user")
			return
		}
	}

	req, err := fn(ctx, requestID)
	if err != nil {
		h.sendError(conn, msgID, errorCode(err), err.Error())
		return
	}
	h.sendResponse(conn, msgID, req)
}

func (h *CommandHandler) handleManagerTransition(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}, fn transitionFunc) {
	if !conn.who.Role.CanManage() {
		h.sendError(conn, msgID, "forbidden", "manager role required")
		return
	}
	requestID, _ := data["requestId"].(string)
	if requestID == "" {
		h.sendError(conn, msgID, "invalid_input", "requestId required")
		return
	}

	req, err := fn(ctx, requestID)
	if err != nil {
		h.sendError(conn, msgID, errorCode(err), err.Error())
		return
	}
	h.sendResponse(conn, msgID, req)
}

func (h *CommandHandler) handleGetPosition(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	requestID, _ := data["requestId"].(string)
	if requestID == "" {
		h.sendError(conn, msgID, "invalid_input", "requestId required")
		return
	}

	pos, err := h.desk.Position(ctx, requestID)
	if err != nil {
		h.sendError(conn, msgID, errorCode(err), err.Error())
		return
	}
	h.sendResponse(conn, msgID, map[string]interface{}{"requestId": requestID, "position": pos})
}

func (h *CommandHandler) handleGetQueue(ctx context.Context, conn *Conn, msgID string) {
	if conn.who.Team == "" {
		h.sendError(conn, msgID, "invalid_input", "connection has no team")
		return
	}
	pending, err := h.desk.PendingQueue(ctx, conn.who.Team)
	if err != nil {
		h.sendError(conn, msgID, errorCode(err), err.Error())
		return
	}
	active, err := h.desk.ActiveList(ctx, conn.who.Team)
	if err != nil {
		h.sendError(conn, msgID, errorCode(err), err.Error())
		return
	}
	h.sendResponse(conn, msgID, map[string]interface{}{"pending": pending, "active": active})
}

// errorCode maps desk errors to the codes clients switch on.
func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrRequestNotFound), errors.Is(err, service.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, lifecycle.ErrDuplicateLiveRequest):
		return "duplicate_live_request"
	case errors.Is(err, lifecycle.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, lifecycle.ErrInvalidCodeType), errors.Is(err, lifecycle.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidUser):
		return "invalid_input"
	}
	return "internal_error"
}

func (h *CommandHandler) sendResponse(conn *Conn, msgID string, data interface{}) {
	response := map[string]interface{}{
		"type": "response",
		"data": data,
	}
	if msgID != "" {
		response["id"] = msgID
	}
	msg, err := json.Marshal(response)
	if err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
		return
	}
	if !conn.trySend(msg) {
		h.log.Warn("Failed to send response, connection closed or full")
	}
}

func (h *CommandHandler) sendError(conn *Conn, msgID, code, message string) {
	resp := map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	}
	if msgID != "" {
		resp["id"] = msgID
	}
	if !conn.sendJSON(resp) {
		h.log.Warn("Failed to send error, channel full")
	}
}
