package engine

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/achievement-tracker/agent/store"
)

// Server is the §6 "Event interface to UI collaborator": list games,
// list achievements for a game, probe-sources-for-game, bind-game-to-
// source, remove-game, toggle-exclusion, export-all, export-game,
// restore-from-backup, search-games-by-name. Grounded on the teacher's
// main.go/routes.go echo wiring.
type Server struct {
	Engine *Engine
	echo   *echo.Echo
}

func NewServer(e *Engine) *Server {
	s := &Server{Engine: e, echo: echo.New()}
	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.Recover())

	s.echo.GET("/games", s.listGames)
	s.echo.GET("/games/:id/achievements", s.listAchievements)
	s.echo.POST("/games/:id/probe", s.probeSources)
	s.echo.POST("/games/:id/bind", s.bindGameToSource)
	s.echo.DELETE("/games/:id", s.removeGame)
	s.echo.POST("/games/:id/exclusion", s.toggleExclusion)
	s.echo.GET("/export", s.exportAll)
	s.echo.GET("/games/:id/export", s.exportGame)
	s.echo.POST("/games/:id/restore", s.restoreFromBackup)
	s.echo.GET("/search", s.searchGames)

	return s
}

// Start runs the control surface's HTTP listener. Blocks until the server
// is shut down or errors.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the HTTP listener, letting in-flight requests
// drain until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func gameIDParam(c echo.Context) (uint32, error) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func jsonErr(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"error": err.Error()})
}

// GET /games — every (game, provider_tag) summary row, i.e. every game
// with at least one tracked provider.
func (s *Server) listGames(c echo.Context) error {
	ctx := c.Request().Context()
	summaries, err := s.Engine.Repo.SummarizeAll(ctx)
	if err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, summaries)
}

// GET /games/:id/achievements
func (s *Server) listAchievements(c echo.Context) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return jsonErr(c, http.StatusBadRequest, err)
	}
	rows, err := s.Engine.Repo.ListByGame(c.Request().Context(), gameID)
	if err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// POST /games/:id/probe?name=Game+Name — dry-runs every eligible
// provider and returns their per-provider counts without committing.
func (s *Server) probeSources(c echo.Context) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return jsonErr(c, http.StatusBadRequest, err)
	}
	gameName := c.QueryParam("name")
	ctx := c.Request().Context()

	schema, err := s.Engine.Client.GetSchema(ctx, gameID)
	if err != nil {
		return jsonErr(c, http.StatusBadGateway, err)
	}
	rates, _ := s.Engine.Client.GetGlobalRates(ctx, gameID)

	candidates := s.Engine.discoveryCandidates(gameID)
	summaries, err := probeCandidates(ctx, s.Engine, gameID, gameName, schema, rates, candidates)
	if err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, summaries)
}

// POST /games/:id/bind?name=Game+Name — runs full onboarding (§4.7
// user-initiated path): arbitrate, persist, and start watching if running.
func (s *Server) bindGameToSource(c echo.Context) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return jsonErr(c, http.StatusBadRequest, err)
	}
	gameName := c.QueryParam("name")
	running := c.QueryParam("running") == "true"

	tag, err := s.Engine.AddGame(c.Request().Context(), gameID, gameName, running)
	if err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"provider_tag": string(tag)})
}

// DELETE /games/:id
func (s *Server) removeGame(c echo.Context) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return jsonErr(c, http.StatusBadRequest, err)
	}
	if err := s.Engine.RemoveGame(c.Request().Context(), gameID); err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// POST /games/:id/exclusion?name=Game+Name&excluded=true|false
func (s *Server) toggleExclusion(c echo.Context) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return jsonErr(c, http.StatusBadRequest, err)
	}
	ctx := c.Request().Context()
	if c.QueryParam("excluded") == "false" {
		if err := s.Engine.Repo.RemoveExclusion(ctx, gameID); err != nil {
			return jsonErr(c, http.StatusInternalServerError, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	if err := s.Engine.Repo.AddExclusion(ctx, gameID, c.QueryParam("name")); err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GET /export
func (s *Server) exportAll(c echo.Context) error {
	entries, err := s.Engine.Repo.ExportAll(c.Request().Context())
	if err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, entries)
}

// GET /games/:id/export — the stable per-game backup format.
func (s *Server) exportGame(c echo.Context) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return jsonErr(c, http.StatusBadRequest, err)
	}
	out, err := s.Engine.Repo.ExportUnlockedForGame(c.Request().Context(), gameID)
	if err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, out)
}

// POST /games/:id/restore — body is the stable backup format produced by
// exportGame: {achievement_key: {UnlockTime}}.
func (s *Server) restoreFromBackup(c echo.Context) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return jsonErr(c, http.StatusBadRequest, err)
	}
	var backup map[string]store.UnlockedExport
	if err := c.Bind(&backup); err != nil {
		return jsonErr(c, http.StatusBadRequest, err)
	}
	n, err := s.Engine.Repo.RestoreFromBackup(c.Request().Context(), gameID, backup)
	if err != nil {
		return jsonErr(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"restored": n})
}

// GET /search?q=term
func (s *Server) searchGames(c echo.Context) error {
	hits, err := s.Engine.Client.SearchGames(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return jsonErr(c, http.StatusBadGateway, err)
	}
	return c.JSON(http.StatusOK, hits)
}
