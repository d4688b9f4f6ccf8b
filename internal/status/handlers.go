package status

import (
	"net/http"
	"time"

	apperrors "github.com/eternisai/assignment-relay/internal/errors"
	"github.com/eternisai/assignment-relay/internal/relay"
	"github.com/gin-gonic/gin"
)

// SchedulerStatus is what the health endpoint needs from the scheduler.
type SchedulerStatus interface {
	State() relay.State
	LastCycleAt() time.Time
}

// ChatStatus reports whether the chat session is connected.
type ChatStatus interface {
	Ready() bool
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string     `json:"status"`
	Scheduler   string     `json:"scheduler"`
	ChatReady   bool       `json:"chat_ready"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
}

type Handler struct {
	scheduler SchedulerStatus
	chat      ChatStatus
}

func NewHandler(scheduler SchedulerStatus, chat ChatStatus) *Handler {
	return &Handler{
		scheduler: scheduler,
		chat:      chat,
	}
}

// HealthCheck reports 200 while the poll loop is running and 503 otherwise.
// GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	state := h.scheduler.State()
	resp := HealthResponse{
		Status:    "ok",
		Scheduler: state.String(),
		ChatReady: h.chat != nil && h.chat.Ready(),
	}
	if last := h.scheduler.LastCycleAt(); !last.IsZero() {
		resp.LastCycleAt = &last
	}

	if state != relay.StateRunning {
		apperrors.ServiceUnavailable(c, "scheduler is not running", map[string]interface{}{
			"scheduler":  resp.Scheduler,
			"chat_ready": resp.ChatReady,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
