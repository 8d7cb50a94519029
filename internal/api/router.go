package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/LJTian/TheNews/internal/collector"
	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/logger"
	"github.com/LJTian/TheNews/internal/news"
	"github.com/LJTian/TheNews/internal/pipeline"
	"github.com/LJTian/TheNews/internal/storage"
	"github.com/gin-gonic/gin"
)

// Pipeline is the part of the orchestrator the handlers drive. Run honours
// the cache freshness check; Refresh always fetches.
type Pipeline interface {
	Run(ctx context.Context) (pipeline.Outcome, error)
	Refresh(ctx context.Context) (pipeline.Outcome, error)
}

type Server struct {
	store    *storage.Store
	board    *Board
	pipeline Pipeline

	// OnOutcome receives every run that produced results.
	OnOutcome func(pipeline.Outcome)
	// OnOptions receives options after they were saved.
	OnOptions func(config.Options)
}

func NewServer(store *storage.Store, board *Board, p Pipeline) *Server {
	return &Server{store: store, board: board, pipeline: p}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(pageTmpl)

	r.GET("/health", s.health)
	r.GET("/", s.page)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/headline", s.headline)
		v1.GET("/stories", s.stories)
		v1.GET("/options", s.getOptions)
		v1.PUT("/options", s.putOptions)
		v1.POST("/refresh", s.refresh)
		v1.GET("/archive", s.archive)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// page is the new tab: every load runs the pipeline, which serves a random
// cached story while the cache is fresh. A failed run still shows whatever
// the board last displayed.
func (s *Server) page(c *gin.Context) {
	out, err := s.pipeline.Run(c.Request.Context())
	if err != nil {
		logger.S().Warnf("page: run pipeline: %v", err)
	}
	s.notify(out)

	opts := out.Options
	if opts.Interval == 0 {
		if opts, err = s.store.LoadOptions(c.Request.Context()); err != nil {
			opts = config.DefaultOptions()
		}
	}
	story, _, ok := s.board.Current()
	c.HTML(http.StatusOK, "page", newPageData(story, ok, opts))
}

func (s *Server) headline(c *gin.Context) {
	story, shownAt, ok := s.board.Current()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no headline displayed yet",
		})
		return
	}
	ok200(c, gin.H{
		"story":    story,
		"byline":   story.Byline(),
		"shown_at": shownAt.Unix(),
	})
}

func (s *Server) stories(c *gin.Context) {
	opts, entry, err := s.store.Load(c.Request.Context())
	if err != nil {
		internalError(c, "stories", err)
		return
	}
	list := entry.Results.Stories
	if list == nil {
		list = []news.Story{}
	}
	ok200(c, gin.H{
		"stories":   list,
		"timestamp": entry.Timestamp,
		"fresh":     entry.Fresh(config.Now(), opts.CacheExpiryDuration()),
	})
}

func (s *Server) getOptions(c *gin.Context) {
	opts, err := s.store.LoadOptions(c.Request.Context())
	if err != nil {
		internalError(c, "options", err)
		return
	}
	ok200(c, opts)
}

// putOptions merges the body over the stored options, so partial updates
// leave the other fields alone.
func (s *Server) putOptions(c *gin.Context) {
	ctx := c.Request.Context()
	opts, err := s.store.LoadOptions(ctx)
	if err != nil {
		internalError(c, "options", err)
		return
	}
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_argument",
			"message": err.Error(),
		})
		return
	}
	if err := s.store.SaveOptions(ctx, opts); err != nil {
		internalError(c, "options", err)
		return
	}
	if s.OnOptions != nil {
		s.OnOptions(opts)
	}
	ok200(c, opts)
}

func (s *Server) refresh(c *gin.Context) {
	out, err := s.pipeline.Refresh(c.Request.Context())
	if err != nil && out.Results.Empty() {
		logger.S().Errorf("refresh: %v", err)
		c.JSON(fetchStatus(err), gin.H{
			"code":    "fetch_failed",
			"message": err.Error(),
		})
		return
	}
	s.notify(out)

	data := gin.H{
		"story":      out.Story,
		"stories":    len(out.Results.Stories),
		"from_cache": out.FromCache,
		"stale":      out.Stale,
	}
	if out.FetchErr != nil {
		data["fetch_error"] = out.FetchErr.Error()
	}
	if err != nil {
		data["warning"] = err.Error()
	}
	ok200(c, data)
}

func (s *Server) archive(c *gin.Context) {
	source := c.Query("source")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	items, err := s.store.ListArchive(c.Request.Context(), source, limit)
	if errors.Is(err, storage.ErrNoArchive) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "archive_disabled",
			"message": "archive requires POSTGRES_DSN",
		})
		return
	}
	if err != nil {
		internalError(c, "archive", err)
		return
	}
	ok200(c, items)
}

func (s *Server) notify(out pipeline.Outcome) {
	if s.OnOutcome != nil && !out.Results.Empty() {
		s.OnOutcome(out)
	}
}

func fetchStatus(err error) int {
	switch {
	case errors.Is(err, collector.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, collector.ErrServiceUnavailable),
		errors.Is(err, collector.ErrHTTPStatus),
		errors.Is(err, collector.ErrMalformedResponse),
		errors.Is(err, pipeline.ErrNoStories):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func ok200(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func internalError(c *gin.Context, what string, err error) {
	logger.S().Errorf("%s: %v", what, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
