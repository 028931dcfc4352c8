package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/triagebot/internal/orchestrator"
	"github.com/triagebot/internal/tracker"
)

// webhookIssue mirrors the issue object of the tracker's webhook
// payload. Its state/closed_by fields are informational only; the
// orchestrator re-fetches authoritative state before acting on it.
type webhookIssue struct {
	Number int    `json:"number"`
	Body   string `json:"body"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	State    string `json:"state"`
	ClosedBy *struct {
		Login string `json:"login"`
	} `json:"closed_by"`
}

type issuesPayload struct {
	Action string       `json:"action"`
	Issue  webhookIssue `json:"issue"`
}

type pushPayload struct {
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// handleWebhook verifies the signature, answers pings, and dispatches
// issue and push events. Processing is asynchronous; the hook replies
// before the event is handled and failed events are logged and dropped.
func (s *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
	}

	sig := c.Request().Header.Get("X-Hub-Signature")
	if !s.verifySignature(sig, body) {
		log.Error().Str("signature", sig).Msg("webhook signature mismatch")
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid signature",
		})
	}

	eventType := c.Request().Header.Get("X-GitHub-Event")
	switch eventType {
	case "ping":
		return c.String(http.StatusOK, "PONG!")

	case "issues":
		var payload issuesPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "malformed issues payload",
			})
		}
		switch payload.Action {
		case "opened", "edited", "reopened":
		default:
			return c.NoContent(http.StatusNoContent)
		}

		event := toEvent(payload)
		go func() {
			if err := s.processor.Process(context.Background(), event); err != nil {
				log.Error().Err(err).Int("issue", event.Issue.Number).
					Msg("event processing failed, dropping event")
			}
		}()
		return c.JSON(http.StatusOK, map[string]string{
			"status":     "accepted",
			"processing": "async",
		})

	case "push":
		var payload pushPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "malformed push payload",
			})
		}
		if payload.Repository.FullName != s.repo {
			return c.NoContent(http.StatusNoContent)
		}
		go func() {
			if err := s.syncer.EnsureFresh(context.Background()); err != nil {
				log.Error().Err(err).Msg("checkout sync failed")
			}
		}()
		return c.NoContent(http.StatusNoContent)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) verifySignature(header string, body []byte) bool {
	mac := hmac.New(sha1.New, s.webhookSecret)
	mac.Write(body)
	expected := "sha1=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}

func toEvent(payload issuesPayload) orchestrator.Event {
	issue := tracker.Issue{
		Number: payload.Issue.Number,
		Body:   payload.Issue.Body,
		Author: payload.Issue.User.Login,
		Closed: payload.Issue.State == "closed",
	}
	for _, l := range payload.Issue.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	if payload.Issue.ClosedBy != nil {
		issue.Closer = payload.Issue.ClosedBy.Login
	}
	return orchestrator.Event{
		Issue:  issue,
		Edited: payload.Action == "edited",
	}
}
