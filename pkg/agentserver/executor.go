package agentserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
)

// Executor bridges a Runner to the A2A protocol.
//
// Event order per request: TaskStateSubmitted for new tasks, then
// TaskStateWorking, then a final TaskStateCompleted carrying the runner's
// reply, or TaskStateFailed carrying the error.
type Executor struct {
	agentID string
	runner  Runner
}

// NewExecutor creates an executor for one agent.
func NewExecutor(agentID string, runner Runner) *Executor {
	return &Executor{agentID: agentID, runner: runner}
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	msg := reqCtx.Message
	if msg == nil {
		return fmt.Errorf("message not provided")
	}

	if reqCtx.StoredTask == nil {
		event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)
		if err := queue.Write(ctx, event); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	if err := queue.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
		return fmt.Errorf("failed to write working event: %w", err)
	}

	output, err := e.runner.Run(ctx, textOf(msg))
	if err != nil {
		slog.Error("Runner failed", "agent", e.agentID, "error", err)
		failMsg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: err.Error()})
		event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, failMsg)
		event.Final = true
		return queue.Write(ctx, event)
	}

	reply := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: output})
	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, reply)
	event.Final = true
	return queue.Write(ctx, event)
}

// Cancel implements a2asrv.AgentExecutor.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	event.Final = true
	return queue.Write(ctx, event)
}

// textOf concatenates the text parts of a message.
func textOf(msg *a2a.Message) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			b.WriteString(p.Text)
		case *a2a.TextPart:
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
