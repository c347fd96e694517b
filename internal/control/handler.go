package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/config"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

// Command represents a control plane command
type Command struct {
	Command       string                 `json:"command"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Params        map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck    string                 `json:"command_ack"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Status        string                 `json:"status"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Timestamp     string                 `json:"timestamp"`
}

// Responder publishes serialized responses
type Responder interface {
	PublishResponse(payload []byte) error
}

// CommandCallbacks contains callback functions for commands
type CommandCallbacks struct {
	OnAnalyzeImage func(ctx context.Context, path string) (types.Result, error)
	OnAnalyzeVideo func(ctx context.Context, path string) (types.Result, error)
	OnGetStatus    func() map[string]interface{}
}

// Handler handles control plane commands. Commands are processed one at a
// time in arrival order.
type Handler struct {
	cfg       *config.Config
	client    mqtt.Client
	responder Responder
	commands  chan Command
	callbacks CommandCallbacks
	now       func() time.Time
}

// NewHandler creates a new control plane handler
func NewHandler(cfg *config.Config, client mqtt.Client, responder Responder, callbacks CommandCallbacks) *Handler {
	return &Handler{
		cfg:       cfg,
		client:    client,
		responder: responder,
		commands:  make(chan Command, 10),
		callbacks: callbacks,
		now:       time.Now,
	}
}

// Start starts listening for control commands
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	slog.Info("control plane handler started")

	go h.processCommands(ctx)

	return nil
}

// Stop unsubscribes from the control topic. Queued commands are dropped.
func (h *Handler) Stop() error {
	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(h.cfg.MQTT.Topics.Control)
		token.WaitTimeout(2 * time.Second)
	}

	slog.Info("control plane handler stopped")
	return nil
}

func (h *Handler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	h.enqueue(msg.Payload())
}

// enqueue parses a raw command and queues it for processing
func (h *Handler) enqueue(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
		h.sendResponse(Response{
			CommandAck:    cmd.Command,
			CorrelationID: cmd.CorrelationID,
			Status:        "error",
			Error:         "command queue full",
		})
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			h.sendResponse(h.handleCommand(ctx, cmd))
		}
	}
}

// handleCommand executes a command and builds its response
func (h *Handler) handleCommand(ctx context.Context, cmd Command) Response {
	resp := Response{CommandAck: cmd.Command, CorrelationID: cmd.CorrelationID}

	switch cmd.Command {
	case "analyze_image":
		h.runAnalysis(ctx, cmd, h.callbacks.OnAnalyzeImage, &resp)

	case "analyze_video":
		h.runAnalysis(ctx, cmd, h.callbacks.OnAnalyzeVideo, &resp)

	case "get_status":
		if h.callbacks.OnGetStatus != nil {
			resp.Status = "success"
			resp.Data = h.callbacks.OnGetStatus()
		} else {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
		}

	case "list_pose_classes":
		resp.Status = "success"
		resp.Data = map[string]interface{}{
			"pose_classes":  types.PoseClasses(),
			"total_classes": types.NumPoseClasses,
		}

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	return resp
}

func (h *Handler) runAnalysis(ctx context.Context, cmd Command, fn func(context.Context, string) (types.Result, error), resp *Response) {
	if fn == nil {
		resp.Status = "error"
		resp.Error = cmd.Command + " not implemented"
		return
	}

	path, ok := cmd.Params["path"].(string)
	if !ok || path == "" {
		resp.Status = "error"
		resp.Error = "missing or invalid 'path' parameter (expected string)"
		return
	}

	result, err := fn(ctx, path)
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		return
	}

	resp.Status = "success"
	resp.Data = map[string]interface{}{"result": result}
}

// sendResponse publishes a response on the responses topic
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = h.now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	if err := h.responder.PublishResponse(payload); err != nil {
		slog.Error("failed to publish response", "error", err, "command_ack", resp.CommandAck)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
