package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podletter/newsletter-api/internal/database"
	"github.com/podletter/newsletter-api/internal/services/episodes"
	"github.com/podletter/newsletter-api/internal/services/feedsync"
	"github.com/podletter/newsletter-api/internal/services/transcripts"
	"github.com/podletter/newsletter-api/internal/services/workers"
)

// Dependencies holds the collaborators the HTTP surface exposes
type Dependencies struct {
	DB       *database.DB
	Worker   *workers.TranscriptWorker
	Episodes episodes.Repository
	Store    transcripts.Store
	Sync     *feedsync.Service
}

// Server is the minimal HTTP trigger/health surface. The full product
// route layer lives elsewhere; this only exposes operational endpoints.
type Server struct {
	router *gin.Engine
	deps   Dependencies
}

// NewServer creates the HTTP server and registers routes
func NewServer(deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{router: router, deps: deps}
	s.registerRoutes()
	return s
}

// Handler returns the underlying HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.getHealth)
	s.router.POST("/worker/run", s.postWorkerRun)
	s.router.POST("/podcasts/sync", s.postPodcastSync)
	s.router.GET("/episodes/:guid/transcript", s.getEpisodeTranscript)
}

func (s *Server) getHealth(c *gin.Context) {
	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// postWorkerRun triggers a transcript worker run. The advisory lock makes
// this safe to call while the nightly run is active: the manual run just
// comes back skipped.
func (s *Server) postWorkerRun(c *gin.Context) {
	summary, err := s.deps.Worker.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if summary.Skipped {
		c.JSON(http.StatusConflict, gin.H{"status": "skipped", "reason": "another run holds the worker lock"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type syncRequest struct {
	FeedURL string `json:"feed_url" binding:"required,url"`
}

func (s *Server) postPodcastSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	count, err := s.deps.Sync.SyncFeed(c.Request.Context(), req.FeedURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"episodes_synced": count})
}

func (s *Server) getEpisodeTranscript(c *gin.Context) {
	guid := c.Param("guid")

	episode, err := s.deps.Episodes.GetByGUID(c.Request.Context(), guid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if episode == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "episode not found"})
		return
	}

	transcript, err := s.deps.Store.GetByEpisodeID(c.Request.Context(), episode.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if transcript == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transcript record for episode"})
		return
	}

	c.JSON(http.StatusOK, transcript)
}
