package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/ports"
	"CurriculumSpider/internal/prompts"
	"CurriculumSpider/internal/session"
)

// ErrEmptyMessage is returned when the session id or the message is blank.
var ErrEmptyMessage = errors.New("session id and message are required")

// IntentAgent holds a short conversation with the learner until topic and intent are known.
type IntentAgent struct {
	oracle ports.Oracle
	store  ports.SessionStore
	window int
	log    *logging.Logger
}

// NewIntentAgent wires the agent. window is the number of recent turns sent with each request.
func NewIntentAgent(oracle ports.Oracle, store ports.SessionStore, window int, log *logging.Logger) *IntentAgent {
	return &IntentAgent{
		oracle: oracle,
		store:  store,
		window: window,
		log:    logging.OrNop(log).With("component", "intent"),
	}
}

// Chat processes one learner message.
func (a *IntentAgent) Chat(ctx context.Context, sessionID, message string) (domain.IntentReply, error) {
	sessionID, message = strings.TrimSpace(sessionID), strings.TrimSpace(message)
	if sessionID == "" || message == "" {
		return domain.IntentReply{}, ErrEmptyMessage
	}

	history, err := a.store.Get(ctx, sessionID)
	if err != nil {
		return domain.IntentReply{}, fmt.Errorf("load session: %w", err)
	}
	var pending []domain.Message
	if len(history) == 0 {
		pending = append(pending, prompts.IntentSystem())
	}
	pending = append(pending, domain.Message{Role: domain.RoleUser, Content: message})
	history = append(history, pending...)

	reply, err := a.oracle.Generate(ctx, session.Window(history, a.window))
	if err != nil {
		return domain.IntentReply{}, fmt.Errorf("generate reply: %w", err)
	}
	text := strings.TrimSpace(reply.Text)

	pending = append(pending, domain.Message{Role: domain.RoleAssistant, Content: text})
	if err := a.store.Append(ctx, sessionID, pending...); err != nil {
		return domain.IntentReply{}, fmt.Errorf("save session: %w", err)
	}

	out := domain.IntentReply{Reply: text, IntentExtracted: strings.Contains(text, prompts.IntentMarker)}
	if intent, ok := prompts.ExtractIntent(text); ok {
		out.Intent = intent
		a.log.Info("intent extracted", "session", sessionID, "topic", intent.Topic)
	} else if out.IntentExtracted {
		a.log.Warn("intent marker without a usable intent object", "session", sessionID)
	}
	return out, nil
}
