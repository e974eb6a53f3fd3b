package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/reelrank/reelrank/internal/config"
	"github.com/reelrank/reelrank/internal/feedback"
	"github.com/reelrank/reelrank/internal/recommend"
	"github.com/reelrank/reelrank/internal/statefile"
)

func (s *Server) getStatus(c echo.Context) error {
	resp := map[string]any{
		"version":   config.Version,
		"startTime": s.startedAt.Format(time.RFC3339),
	}
	if latest, err := s.deps.Recommend.Latest(); err == nil {
		resp["lastRunId"] = latest.RunID
		resp["lastRunAt"] = latest.GeneratedAt.Format(time.RFC3339)
		resp["shown"] = len(latest.Items)
	}
	return c.JSON(http.StatusOK, resp)
}

// getRecommendations returns the latest result. ?limit=n trims the shown
// items.
// GET /api/v1/recommendations
func (s *Server) getRecommendations(c echo.Context) error {
	latest, err := s.deps.Recommend.Latest()
	if err != nil {
		if errors.Is(err, statefile.ErrNotExist) {
			return echo.NewHTTPError(http.StatusNotFound, "no recommendations yet")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		if limit < len(latest.Items) {
			trimmed := *latest
			trimmed.Items = latest.Items[:limit]
			return c.JSON(http.StatusOK, &trimmed)
		}
	}
	return c.JSON(http.StatusOK, latest)
}

// runRecommendations executes a run synchronously.
// POST /api/v1/recommendations/run
func (s *Server) runRecommendations(c echo.Context) error {
	res, err := s.deps.Recommend.RunOnce(c.Request().Context())
	if err != nil {
		if errors.Is(err, recommend.ErrNoCandidateSource) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

type feedbackRequest struct {
	Body     string             `json:"body"`
	HTML     string             `json:"html"`
	Messages []feedback.Message `json:"messages"`
}

func (r *feedbackRequest) messages() []feedback.Message {
	msgs := append([]feedback.Message(nil), r.Messages...)
	if strings.TrimSpace(r.Body) != "" || strings.TrimSpace(r.HTML) != "" {
		msgs = append(msgs, feedback.Message{Body: r.Body, HTML: r.HTML})
	}
	return msgs
}

// postFeedback ingests one or more feedback messages.
// POST /api/v1/feedback
func (s *Server) postFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msgs := req.messages()
	if len(msgs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no feedback messages")
	}

	report, err := s.deps.Recommend.IngestFeedback(c.Request().Context(), msgs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// rebuildSeen rebuilds the seen index from the history exports.
// POST /api/v1/seen/rebuild
func (s *Server) rebuildSeen(c echo.Context) error {
	n, err := s.deps.Recommend.RebuildSeen(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"records": n})
}
