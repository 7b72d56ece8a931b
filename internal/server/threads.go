package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"quester/internal/agent"
	"quester/internal/workflow"
)

// ThreadsHandler serves thread creation and transcript retrieval.
type ThreadsHandler struct {
	Agent *agent.Agent
}

func (h *ThreadsHandler) Register(g *echo.Group) {
	g.POST("/threads/create", h.createThread)
	g.GET("/state/:thread_id", h.threadState)
}

// CreateThread
//
//	@Summary	Create a conversation thread
//	@Tags		threads
//	@Produce	json
//	@Success	200	{object}	ThreadResponse
//	@Router		/api/threads/create [post]
func (h *ThreadsHandler) createThread(c echo.Context) error {
	return c.JSON(http.StatusOK, ThreadResponse{ThreadID: uuid.NewString()})
}

// ThreadState
//
//	@Summary		Get thread transcript
//	@Description	Returns the chronological chat messages with embedded search results. Internal bookkeeping turns are omitted.
//	@Tags			threads
//	@Produce		json
//	@Param			thread_id	path		string	true	"Thread id"
//	@Success		200			{object}	StateResponse
//	@Router			/api/state/{thread_id} [get]
func (h *ThreadsHandler) threadState(c echo.Context) error {
	threadID := c.Param("thread_id")
	snap, ok, err := h.Agent.SnapshotFor(c.Request().Context(), threadID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := StateResponse{ThreadID: threadID, Messages: []ChatMessage{}}
	if !ok {
		return c.JSON(http.StatusOK, resp)
	}
	resp.Status = string(snap.Status)
	if snap.Status == workflow.StatusSuspended {
		resp.PendingInterrupt = snap.Prompt
	}
	for _, t := range snap.State.Turns {
		if internalTurn(t) {
			continue
		}
		resp.Messages = append(resp.Messages, ChatMessage{
			ID:      t.ID,
			Role:    string(t.Role),
			Content: t.Content,
			Results: t.Results,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// internalTurn reports bookkeeping turns that never show in the chat UI.
func internalTurn(t workflow.Turn) bool {
	if t.Role != workflow.RoleAssistant {
		return false
	}
	return strings.HasPrefix(t.Content, "Planned ") || strings.HasPrefix(t.Content, "Classification:")
}
