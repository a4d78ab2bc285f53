package server

import (
	"context"
	"fmt"

	"github.com/gofiber/contrib/websocket"

	"github.com/entrhq/aide/pkg/agent"
	"github.com/entrhq/aide/pkg/assistant/approval"
	"github.com/entrhq/aide/pkg/assistant/tools"
	"github.com/entrhq/aide/pkg/session"
	"github.com/entrhq/aide/pkg/types"
)

// eventWriter is the slice of a WebSocket connection the turn pipeline
// writes events to.
type eventWriter interface {
	WriteJSON(v interface{}) error
}

// handleChat runs the streaming protocol over one WebSocket connection.
// A connection can serve many turns; the session outlives the connection,
// so a paused turn can be resumed after a reconnect.
func (s *Server) handleChat(conn *websocket.Conn) {
	defer conn.Close()

	for {
		var msg types.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		sess, created, err := s.sessions.GetOrCreate(context.Background(), msg.SessionID)
		if err != nil {
			s.send(conn, types.NewErrorEvent(err))
			continue
		}
		if created {
			s.send(conn, types.NewSessionCreatedEvent(sess.ID))
		}

		switch {
		case msg.IsApproval():
			s.handleApprovalFrame(conn, sess, msg.Approval)
		case msg.IsChat():
			s.handleChatFrame(conn, sess, msg.Message)
		default:
			s.send(conn, types.NewErrorEvent(fmt.Errorf("frame carries neither a message nor an approval")))
		}
	}
}

// handleChatFrame runs one user message through the agent. A session runs
// at most one turn at a time; input arriving mid-turn is rejected.
func (s *Server) handleChatFrame(conn eventWriter, sess *session.Session, text string) {
	if !sess.BeginTurn() {
		s.send(conn, types.NewErrorEvent(fmt.Errorf("session %s already has a turn in flight", sess.ID)))
		return
	}
	defer sess.EndTurn()
	s.send(conn, types.NewStartEvent())

	emit := func(ev *types.AgentEvent) { s.send(conn, ev) }
	result, err := s.runner.RunTurn(context.Background(), sess.Deps, sess.Approvals, sess.History(), text, emit)
	s.finishTurn(conn, sess, result, err)
}

// handleApprovalFrame resumes a paused turn with the user's decisions.
func (s *Server) handleApprovalFrame(conn eventWriter, sess *session.Session, decision *types.ApprovalDecision) {
	if !sess.BeginTurn() {
		s.send(conn, types.NewErrorEvent(fmt.Errorf("session %s already has a turn in flight", sess.ID)))
		return
	}
	defer sess.EndTurn()

	history, ok := sess.RestoreSnapshot()
	if !ok {
		s.send(conn, types.NewErrorEvent(fmt.Errorf("session %s has no paused turn", sess.ID)))
		return
	}
	s.send(conn, types.NewStartEvent())

	emit := func(ev *types.AgentEvent) { s.send(conn, ev) }
	result, err := s.runner.ResumeTurn(context.Background(), sess.Deps, sess.Approvals, history, decision.Approvals, emit)
	s.finishTurn(conn, sess, result, err)
}

// finishTurn handles the three ways a turn ends: error, pause, completion.
// Only normal completion closes with done; a pause or error is terminal
// by itself and the turn goes quiet after it.
func (s *Server) finishTurn(conn eventWriter, sess *session.Session, result *agent.TurnResult, err error) {
	if err != nil {
		s.log.Errorf("turn failed in session %s: %v", sess.ID, err)
		s.send(conn, types.NewErrorEvent(err))
		return
	}

	if result.Paused {
		sess.TakeSnapshot(result.History)
		s.send(conn, types.NewApprovalRequiredEvent(toApprovalRequests(sess.Approvals.Pending())))
		return
	}

	sess.SetHistory(result.History)
	s.logConversation(sess, result)
	s.send(conn, types.NewDoneEvent())
}

// logConversation appends the finished exchange to the user's memory.
func (s *Server) logConversation(sess *session.Session, result *agent.TurnResult) {
	userMessage := lastUserMessage(result.History)
	if userMessage == "" && result.FinalText == "" {
		return
	}
	userID := tools.ResolveUserID(context.Background(), sess.Deps, s.chain)
	if err := s.facade.AddConversation(userID, userMessage, result.FinalText); err != nil {
		s.log.Warnf("record conversation for %s: %v", userID, err)
		return
	}
	if _, err := s.facade.IncrementConversationCount(userID); err != nil {
		s.log.Warnf("bump conversation count for %s: %v", userID, err)
	}
}

func (s *Server) send(conn eventWriter, ev *types.AgentEvent) {
	if err := conn.WriteJSON(ev); err != nil {
		s.log.Warnf("write event %s: %v", ev.Type, err)
	}
}

func toApprovalRequests(pending []*approval.Pending) []types.ApprovalRequest {
	out := make([]types.ApprovalRequest, 0, len(pending))
	for _, p := range pending {
		out = append(out, types.ApprovalRequest{
			ApprovalID: p.ApprovalID,
			ToolCallID: p.ToolCallID,
			ToolName:   p.ToolName,
			Arguments:  p.Arguments,
		})
	}
	return out
}

func lastUserMessage(history []*types.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
