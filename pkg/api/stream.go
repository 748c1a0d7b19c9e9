package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
)

// wantsSSE reports whether the caller asked for an event stream.
func wantsSSE(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

// streamRun executes a workflow against the negotiated transport. SSE
// callers get every progress event as it happens plus a terminal result
// or error frame; JSON callers get the finished run in one document. The
// run itself decides success — HTTP 200 covers both outcomes in JSON
// mode, with run.success carrying the verdict.
func streamRun(c *gin.Context, run func(ctx context.Context, sink progress.Sink) *models.WorkflowRun) {
	if wantsSSE(c) {
		sse, err := progress.NewSSEWriter(c.Writer)
		if err != nil {
			respondError(c, http.StatusInternalServerError, errTypeInternal, "connection does not support streaming")
			return
		}
		result := run(c.Request.Context(), sse)
		if result.Success {
			sse.WriteResult(result)
		} else {
			sse.WriteError(result.Error)
		}
		return
	}

	result := run(c.Request.Context(), progress.NopSink{})
	c.JSON(http.StatusOK, result)
}
