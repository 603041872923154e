package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	gocmd "github.com/goliatone/go-command"

	bridgecommand "github.com/goliatone/go-wabridge/command"
	"github.com/goliatone/go-wabridge/core"
	bridgequery "github.com/goliatone/go-wabridge/query"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

type executor[T any] interface {
	Execute(ctx context.Context, msg T) error
}

// execute runs a command and returns the value it stored in the result
// collector.
func execute[R any, T any](ctx context.Context, cmd executor[T], msg T) (R, error) {
	collector := gocmd.NewResult[R]()
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		var zero R
		return zero, err
	}
	out, _ := collector.Load()
	return out, nil
}

type sendRequest struct {
	To          string `json:"to"`
	Message     string `json:"message"`
	SessionName string `json:"sessionName"`
}

type webhookRequest struct {
	URL        string   `json:"url"`
	Events     []string `json:"events"`
	Secret     string   `json:"secret"`
	MaxRetries *int     `json:"maxRetries"`
	TimeoutMS  int64    `json:"timeoutMs"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   s.clock.Now().Format(time.RFC3339Nano),
	})
}

func (s *Server) sseInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"sse":     false,
		"message": "SSE not implemented in this build",
	})
}

func (s *Server) getQRCode(c *fiber.Ctx) error {
	result, err := s.queries.GetQRCode.Query(c.UserContext(), bridgequery.GetQRCodeMessage{Session: c.Params("session")})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	snapshot, err := s.queries.GetStatus.Query(c.UserContext(), bridgequery.GetStatusMessage{Session: c.Params("session")})
	if err != nil {
		return err
	}
	return c.JSON(snapshot)
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var req sendRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badInput("body", "invalid request body")
		}
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Message) == "" {
		return badInput("to", "to and message are required")
	}
	result, err := execute[session.SendResult](c.UserContext(), s.commands.SendMessage, bridgecommand.SendMessageMessage{
		Session: req.SessionName,
		To:      req.To,
		Body:    req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	snapshots, err := s.queries.ListSessions.Query(c.UserContext(), bridgequery.ListSessionsMessage{})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sessions": snapshots})
}

func (s *Server) createSession(c *fiber.Ctx) error {
	snapshot, err := execute[session.Snapshot](c.UserContext(), s.commands.CreateSession, bridgecommand.CreateSessionMessage{
		Session: c.Params("session"),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(snapshot)
}

func (s *Server) disconnectSession(c *fiber.Ctx) error {
	result, err := execute[session.DisconnectResult](c.UserContext(), s.commands.DisconnectSession, bridgecommand.DisconnectSessionMessage{
		Session: c.Params("session"),
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) getContacts(c *fiber.Ctx) error {
	contacts, err := s.queries.GetContacts.Query(c.UserContext(), bridgequery.GetContactsMessage{Session: c.Params("session")})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"contacts": contacts})
}

func (s *Server) getChats(c *fiber.Ctx) error {
	chats, err := s.queries.GetChats.Query(c.UserContext(), bridgequery.GetChatsMessage{Session: c.Params("session")})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"chats": chats})
}

func (s *Server) fetchMessages(c *fiber.Ctx) error {
	chatID := strings.TrimSpace(c.Query("chatId"))
	if chatID == "" {
		return badInput("chatId", "chatId is required")
	}
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return badInput("limit", "limit must be >= 0")
	}
	messages, err := s.queries.FetchMessages.Query(c.UserContext(), bridgequery.FetchMessagesMessage{
		Session: c.Params("session"),
		ChatID:  chatID,
		Limit:   limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (s *Server) listWebhooks(c *fiber.Ctx) error {
	subs, err := s.queries.ListWebhooks.Query(c.UserContext(), bridgequery.ListWebhooksMessage{})
	if err != nil {
		return err
	}
	views := make([]webhookView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, newWebhookView(sub))
	}
	return c.JSON(fiber.Map{"webhooks": views})
}

func (s *Server) setWebhook(c *fiber.Ctx) error {
	var req webhookRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badInput("body", "invalid request body")
		}
	}
	if strings.TrimSpace(req.URL) == "" {
		return badInput("url", "url is required")
	}
	if req.TimeoutMS < 0 {
		return badInput("timeoutMs", "timeoutMs must be >= 0")
	}
	events := req.Events
	if len(events) == 0 {
		events = []string{core.EventMessage.String()}
	}
	result, err := execute[webhooks.SetWebhookResult](c.UserContext(), s.commands.SetWebhook, bridgecommand.SetWebhookMessage{
		URL:        req.URL,
		Events:     events,
		Secret:     req.Secret,
		MaxRetries: req.MaxRetries,
		Timeout:    time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	return c.JSON(newSetWebhookResponse(result))
}

func (s *Server) removeWebhook(c *fiber.Ctx) error {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" && len(c.Body()) > 0 {
		var req webhookRequest
		if err := c.BodyParser(&req); err != nil {
			return badInput("body", "invalid request body")
		}
		rawURL = strings.TrimSpace(req.URL)
	}
	if rawURL == "" {
		return badInput("url", "url is required")
	}
	result, err := execute[webhooks.RemoveWebhookResult](c.UserContext(), s.commands.RemoveWebhook, bridgecommand.RemoveWebhookMessage{
		URL: rawURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(newRemoveWebhookResponse(result))
}

func (s *Server) processRetryQueue(c *fiber.Ctx) error {
	report, err := execute[webhooks.SweepReport](c.UserContext(), s.commands.ProcessRetryQueue, bridgecommand.ProcessRetryQueueMessage{})
	if err != nil {
		return err
	}
	return c.JSON(newSweepView(report))
}
