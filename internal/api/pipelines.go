package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"github.com/zulandar/pipedesk/internal/pipeline"
)

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handlePipelineList(c *gin.Context) {
	list, err := s.pipelines.List(c.Request.Context(), pipeline.ListFilters{
		UserID: c.Query("userId"),
		TeamID: c.Query("teamId"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]pipeline.Detail, len(list))
	for i, p := range list {
		out[i] = pipeline.Detail{Pipeline: p, DisplayName: pipeline.DisplayName(p)}
	}
	c.JSON(http.StatusOK, out)
}

type createPipelineRequest struct {
	Name   string     `json:"name"`
	Date   *time.Time `json:"date"`
	UserID string     `json:"userId"`
	TeamID string     `json:"teamId"`
	Stages []string   `json:"stages"`
}

func (s *Server) handlePipelineCreate(c *gin.Context) {
	var req createPipelineRequest
	if !bind(c, &req) {
		return
	}
	opts := pipeline.CreateOpts{
		Name:   req.Name,
		UserID: req.UserID,
		TeamID: req.TeamID,
		Stages: req.Stages,
	}
	if req.Date != nil {
		opts.Date = *req.Date
	}
	p, err := s.pipelines.Create(c.Request.Context(), opts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pipeline.Detail{Pipeline: *p, DisplayName: pipeline.DisplayName(*p)})
}

func (s *Server) handlePipelineGet(c *gin.Context) {
	id := c.Param("id")
	detail, err := s.pipelines.Pipeline(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if detail == nil {
		abortWithError(c, crmerr.NotFound("pipeline", id))
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handlePipelineRename(c *gin.Context) {
	var req nameRequest
	if !bind(c, &req) {
		return
	}
	p, err := s.pipelines.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipeline.Detail{Pipeline: *p, DisplayName: pipeline.DisplayName(*p)})
}

func (s *Server) handlePipelineDelete(c *gin.Context) {
	if err := s.pipelines.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStageCreate(c *gin.Context) {
	var req nameRequest
	if !bind(c, &req) {
		return
	}
	stage, err := s.pipelines.CreateStage(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stage)
}

func (s *Server) handleStageRename(c *gin.Context) {
	var req nameRequest
	if !bind(c, &req) {
		return
	}
	stage, err := s.pipelines.RenameStage(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

func (s *Server) handleStageDelete(c *gin.Context) {
	if err := s.pipelines.DeleteStage(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createCardRequest struct {
	PipelineID     string         `json:"pipelineId"`
	Notes          string         `json:"notes"`
	NextFollowUpAt *time.Time     `json:"nextFollowUpAt"`
	Contact        models.Contact `json:"contact"`
}

func (s *Server) handleCardCreate(c *gin.Context) {
	var req createCardRequest
	if !bind(c, &req) {
		return
	}
	card, err := s.pipelines.CreateCard(c.Request.Context(), pipeline.CardOpts{
		PipelineID:     req.PipelineID,
		StageID:        c.Param("id"),
		Notes:          req.Notes,
		NextFollowUpAt: req.NextFollowUpAt,
		Contact:        req.Contact,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

type moveCardRequest struct {
	ToStageID string `json:"toStageId"`
}

func (s *Server) handleCardMove(c *gin.Context) {
	var req moveCardRequest
	if !bind(c, &req) {
		return
	}
	id := c.Param("id")
	err := s.pipelines.MoveCard(c.Request.Context(), id, req.ToStageID)
	cardMoves.WithLabelValues(result(err)).Inc()
	if err != nil {
		abortWithError(c, err)
		return
	}
	card, err := pipeline.GetCard(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) handleCardHistory(c *gin.Context) {
	id := c.Param("id")
	db := s.db.WithContext(c.Request.Context())
	card, err := pipeline.GetCard(db, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if card == nil {
		abortWithError(c, crmerr.NotFound("card", id))
		return
	}
	moves, err := pipeline.History(db, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, moves)
}

type updateCardRequest struct {
	Notes          *string    `json:"notes"`
	NextFollowUpAt *time.Time `json:"nextFollowUpAt"`
	ClearFollowUp  bool       `json:"clearFollowUp"`
}

func (s *Server) handleCardUpdate(c *gin.Context) {
	var req updateCardRequest
	if !bind(c, &req) {
		return
	}
	card, err := pipeline.UpdateCard(s.db.WithContext(c.Request.Context()), c.Param("id"), pipeline.CardUpdate{
		Notes:          req.Notes,
		NextFollowUpAt: req.NextFollowUpAt,
		ClearFollowUp:  req.ClearFollowUp,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) handleCardDelete(c *gin.Context) {
	if err := pipeline.DeleteCard(s.db.WithContext(c.Request.Context()), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
