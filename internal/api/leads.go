package api

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/leads"
)

// maxUploadBytes caps the lead file body read into memory.
const maxUploadBytes = 10 << 20

func (s *Server) handleFolderList(c *gin.Context) {
	folders, err := leads.ListFolders(s.db.WithContext(c.Request.Context()), leads.Filters{
		UserID: c.Query("userId"),
		TeamID: c.Query("teamId"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, folders)
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
	UserID   string `json:"userId"`
	TeamID   string `json:"teamId"`
}

func (s *Server) handleFolderCreate(c *gin.Context) {
	var req createFolderRequest
	if !bind(c, &req) {
		return
	}
	opts := leads.FolderOpts{Name: req.Name, ParentID: req.ParentID, UserID: req.UserID, TeamID: req.TeamID}
	if opts.UserID == "" && opts.TeamID == "" {
		opts.UserID = actor(c)
	}
	folder, err := leads.CreateFolder(s.db.WithContext(c.Request.Context()), opts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

func (s *Server) handleFolderGet(c *gin.Context) {
	id := c.Param("id")
	folder, err := leads.GetFolder(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if folder == nil {
		abortWithError(c, crmerr.NotFound("folder", id))
		return
	}
	c.JSON(http.StatusOK, folder)
}

func (s *Server) handleFolderRename(c *gin.Context) {
	var req nameRequest
	if !bind(c, &req) {
		return
	}
	folder, err := leads.UpdateFolder(s.db.WithContext(c.Request.Context()), c.Param("id"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, folder)
}

func (s *Server) handleFolderDelete(c *gin.Context) {
	if err := leads.DeleteFolder(s.db.WithContext(c.Request.Context()), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type uploadRequest struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

// handleFileUpload accepts either a multipart "file" field or a JSON body
// carrying the file name and its text.
func (s *Server) handleFileUpload(c *gin.Context) {
	var req uploadRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			abortWithError(c, crmerr.Validation("leads: multipart field \"file\" is required"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			abortWithError(c, fmt.Errorf("api: open upload: %w", err))
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
		if err != nil {
			abortWithError(c, fmt.Errorf("api: read upload: %w", err))
			return
		}
		if len(data) > maxUploadBytes {
			abortWithError(c, crmerr.Validation("leads: file exceeds %d bytes", maxUploadBytes))
			return
		}
		req.FileName = c.PostForm("fileName")
		if req.FileName == "" {
			req.FileName = filepath.Base(fh.Filename)
		}
		req.Content = string(data)
	} else {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
		if !bind(c, &req) {
			return
		}
	}

	parsed := leads.ParseDelimitedText(req.Content)
	file, err := leads.Upload(s.db.WithContext(c.Request.Context()), leads.UploadOpts{
		FolderID: c.Param("id"),
		FileName: req.FileName,
		Headers:  parsed.Headers,
		Rows:     parsed.Rows,
		ActorID:  actor(c),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	leadRowsImported.Add(float64(len(file.Rows)))
	c.JSON(http.StatusCreated, file)
}

func (s *Server) handleFileGet(c *gin.Context) {
	id := c.Param("id")
	file, err := leads.GetFile(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if file == nil {
		abortWithError(c, crmerr.NotFound("lead file", id))
		return
	}
	c.JSON(http.StatusOK, file)
}

func (s *Server) handleFileExport(c *gin.Context) {
	id := c.Param("id")
	file, err := leads.GetFile(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if file == nil {
		abortWithError(c, crmerr.NotFound("lead file", id))
		return
	}
	name := strings.TrimSuffix(file.Name, filepath.Ext(file.Name)) + ".csv"
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Status(http.StatusOK)
	if err := leads.Export(c.Writer, file); err != nil {
		log.Printf("api: export lead file %s: %v", id, err)
	}
}

type reachedRequest struct {
	Reached *bool `json:"reached"`
}

func (s *Server) handleRowReached(c *gin.Context) {
	var req reachedRequest
	if !bind(c, &req) {
		return
	}
	if req.Reached == nil {
		abortWithError(c, crmerr.Validation("leads: reached is required"))
		return
	}
	row, err := leads.SetReached(s.db.WithContext(c.Request.Context()), c.Param("id"), *req.Reached)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
