package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/pipeline"
	"github.com/jorge-barreto/tome/internal/progress"
)

// Server holds the handler dependencies. Hub is only needed for websocket
// watches.
type Server struct {
	Store    progress.Store
	Hub      *progress.Hub
	Launcher Launcher
	Defaults Defaults
	Log      *slog.Logger
}

func (s *Server) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// ContentURL is where the artifact of runID is served.
func ContentURL(runID string) string {
	return "/api/runs/" + runID + "/artifact"
}

type startRequest struct {
	Topic           string `json:"topic"`
	Audience        string `json:"audience"`
	TargetWordCount int    `json:"targetWordCount"`
}

type startResponse struct {
	RunID     string `json:"runId"`
	StatusURL string `json:"statusUrl"`
	WatchURL  string `json:"watchUrl"`
}

// runSummary is one entry of the run list.
type runSummary struct {
	RunID     string     `json:"runId"`
	Topic     string     `json:"topic"`
	Status    string     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	Running   bool       `json:"running"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Sections  int        `json:"completedSections"`
	Total     int        `json:"totalSections"`
}

func (s *Server) health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok", "running": len(s.Launcher.Running())})
}

func (s *Server) startRun(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := config.ValidateTopic(req.Topic); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if req.Audience == "" {
		req.Audience = s.Defaults.Audience
	}
	runID, err := s.Launcher.Start(pipeline.Request{
		Topic:           req.Topic,
		Audience:        req.Audience,
		TargetWordCount: pipeline.ClampWords(req.TargetWordCount, s.Defaults.Words),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusAccepted, startResponse{
		RunID:     runID,
		StatusURL: "/api/runs/" + runID,
		WatchURL:  "/ws/runs/" + runID,
	})
}

func (s *Server) listRuns(c *gin.Context) {
	recs, err := s.Store.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	running := make(map[string]bool)
	for _, id := range s.Launcher.Running() {
		running[id] = true
	}
	out := make([]runSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, runSummary{
			RunID:     r.WorkflowID,
			Topic:     r.Topic,
			Status:    r.Status,
			Reason:    r.Reason,
			Running:   running[r.WorkflowID],
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Sections:  r.CompletedSections,
			Total:     r.TotalSections,
		})
	}
	ok(c, http.StatusOK, out)
}

func (s *Server) getRun(c *gin.Context) {
	id := c.Param("id")
	snap, err := s.Store.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, progress.BuildView(snap, ContentURL(id)))
}

func (s *Server) cancelRun(c *gin.Context) {
	id := c.Param("id")
	if s.Launcher.Cancel(id) {
		ok(c, http.StatusAccepted, gin.H{"runId": id, "cancelling": true})
		return
	}
	snap, err := s.Store.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	if snap.Terminal() {
		fail(c, http.StatusConflict, CodeConflict, "run already "+snap.Status)
		return
	}
	// in progress on record but not owned by this server
	fail(c, http.StatusConflict, CodeConflict, "run is not running in this process")
}

func (s *Server) artifact(c *gin.Context) {
	snap, err := s.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if snap.Result == nil || snap.Result.ArtifactPath == "" {
		fail(c, http.StatusNotFound, CodeNotFound, "run has no artifact")
		return
	}
	c.File(snap.Result.ArtifactPath)
}
