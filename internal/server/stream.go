package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"quester/internal/agent"
	"quester/internal/workflow"
)

// AgentHandler streams workflow runs over SSE.
type AgentHandler struct {
	Agent  *agent.Agent
	Logger *log.Logger
}

func (h *AgentHandler) Register(g *echo.Group) {
	g.POST("/query-agent", h.queryAgent)
}

// QueryAgent
//
//	@Summary		Run the research agent
//	@Description	Streams run progress as server-sent events. When the thread is suspended on a plan review, the message is treated as the review response.
//	@Tags			agent
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			payload	body	AgentQuery	true	"Query payload"
//	@Success		200
//	@Failure		400	{object}	HTTPError
//	@Router			/api/query-agent [post]
func (h *AgentHandler) queryAgent(c echo.Context) error {
	var req AgentQuery
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	ctx, span := otel.Tracer("quester/internal/server").Start(c.Request().Context(), "query-agent",
		trace.WithAttributes(attribute.String("thread_id", threadID)))
	defer span.End()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}
	res.WriteHeader(http.StatusOK)

	writeEvent := func(ev workflow.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(res, "data: %s\n\n", payload)
		flusher.Flush()
	}

	// A thread suspended on a plan review treats any incoming message as the
	// review response, whether or not the client flagged it.
	resume := req.IsResponseToInterrupt
	if !resume {
		if _, pending, err := h.Agent.PendingInterrupt(ctx, threadID); err == nil && pending {
			resume = true
		}
	}

	var err error
	if resume {
		writeEvent(workflow.Event{Type: workflow.EventStart, Content: "Resuming with your input: " + message})
		_, err = h.Agent.Resume(ctx, threadID, message, writeEvent)
	} else {
		writeEvent(workflow.Event{Type: workflow.EventStart, Content: "Processing your query..."})
		_, err = h.Agent.Run(ctx, threadID, userIDFrom(c), message, writeEvent)
	}
	// Step failures already reached the stream through the sink; only
	// precondition errors still need surfacing.
	if err != nil {
		span.RecordError(err)
		h.Logger.Printf("thread %s: %v", threadID, err)
		if errors.Is(err, workflow.ErrNotSuspended) || errors.Is(err, workflow.ErrUnknownRun) || errors.Is(err, workflow.ErrRunActive) {
			writeEvent(workflow.Event{Type: workflow.EventError, Message: err.Error()})
		}
	}
	return nil
}
