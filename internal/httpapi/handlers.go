package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/usecase"
)

// CourseGenerator produces a curriculum for a topic and intent.
type CourseGenerator interface {
	Generate(ctx context.Context, topic, intent string) (domain.CourseReport, error)
}

// Chatter runs one intent-agent turn.
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string) (domain.IntentReply, error)
}

type spiderRequest struct {
	Topic  string `json:"topic"`
	Intent string `json:"intent"`
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Success bool `json:"success"`
	domain.IntentReply
}

// CourseHandler serves POST /spider.
type CourseHandler struct {
	course  CourseGenerator
	timeout time.Duration
	log     *logging.Logger
}

// NewCourseHandler builds the handler. A positive timeout bounds each generation.
func NewCourseHandler(course CourseGenerator, timeout time.Duration, log *logging.Logger) *CourseHandler {
	return &CourseHandler{course: course, timeout: timeout, log: logging.OrNop(log).With("handler", "course")}
}

// Spider generates a curriculum.
func (h *CourseHandler) Spider(c *gin.Context) {
	var req spiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.course.Generate(ctx, req.Topic, req.Intent)
	switch {
	case errors.Is(err, usecase.ErrMissingTopic):
		RespondError(c, http.StatusBadRequest, err)
	case err != nil:
		h.log.Error("spider failed", "topic", req.Topic, "error", err)
		RespondError(c, http.StatusInternalServerError, err)
	default:
		RespondOK(c, report)
	}
}

// ChatHandler serves POST /chat.
type ChatHandler struct {
	agent Chatter
	log   *logging.Logger
}

// NewChatHandler builds the handler.
func NewChatHandler(agent Chatter, log *logging.Logger) *ChatHandler {
	return &ChatHandler{agent: agent, log: logging.OrNop(log).With("handler", "chat")}
}

// Chat runs one conversational turn.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	reply, err := h.agent.Chat(c.Request.Context(), req.SessionID, req.Message)
	switch {
	case errors.Is(err, usecase.ErrEmptyMessage):
		RespondError(c, http.StatusBadRequest, err)
	case err != nil:
		h.log.Error("chat failed", "session", req.SessionID, "error", err)
		RespondError(c, http.StatusInternalServerError, err)
	default:
		RespondOK(c, chatResponse{Success: true, IntentReply: reply})
	}
}
