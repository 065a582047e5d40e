package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"storywoven/pkg/scene"
	"storywoven/pkg/schema"
	"storywoven/pkg/story"
	"storywoven/pkg/utils"
)

// loadAuthorized resolves the caller and loads the project, rejecting
// cross-owner access.
func (s *Server) loadAuthorized(c echo.Context, projectID string) (*schema.Project, string, error) {
	owner, err := s.Auth.OwnerID(c)
	if err != nil {
		return nil, "", err
	}
	p, err := s.Store.LoadProject(c.Request().Context(), projectID)
	if err != nil {
		return nil, owner, err
	}
	if err := authorizeProject(p, owner); err != nil {
		return nil, owner, err
	}
	return p, owner, nil
}

// POST /api/ideas
func (s *Server) handlePostIdeas(c echo.Context) error {
	var req story.IdeasInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("invalid json"))
	}
	owner, err := s.Auth.OwnerID(c)
	if err != nil {
		return httpError(err)
	}
	req.OwnerID = owner
	if req.ProjectID != "" {
		if _, _, err := s.loadAuthorized(c, req.ProjectID); err != nil {
			return httpError(err)
		}
	}
	p, err := s.Story.GenerateStoryIdeas(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// POST /api/story
func (s *Server) handlePostStory(c echo.Context) error {
	var req story.WriteInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("invalid json"))
	}
	if _, _, err := s.loadAuthorized(c, req.ProjectID); err != nil {
		return httpError(err)
	}
	p, err := s.Story.WriteStory(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type finalizeRequest struct {
	ProjectID string             `json:"project_id"`
	Pages     []schema.StoryPage `json:"pages,omitempty"`
}

// POST /api/finalize
func (s *Server) handlePostFinalize(c echo.Context) error {
	var req finalizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("invalid json"))
	}
	if _, _, err := s.loadAuthorized(c, req.ProjectID); err != nil {
		return httpError(err)
	}
	res, err := s.Registry.FinalizeStory(c.Request().Context(), req.ProjectID, req.Pages)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type modelRequest struct {
	ProjectID string `json:"project_id" form:"project_id"`
	Force     bool   `json:"force,omitempty" form:"force"`
}

// POST /api/character-model
// Accepts JSON, or multipart form with an optional "photo" file.
func (s *Server) handlePostCharacterModel(c echo.Context) error {
	var req modelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("invalid request body"))
	}
	if _, _, err := s.loadAuthorized(c, req.ProjectID); err != nil {
		return httpError(err)
	}

	in := story.ModelInput{ProjectID: req.ProjectID, Force: req.Force}
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if fh, err := c.FormFile("photo"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return c.JSON(http.StatusBadRequest, utils.ErrJSON("unreadable photo upload"))
			}
			defer f.Close()
			if in.Photo, err = io.ReadAll(f); err != nil {
				return c.JSON(http.StatusBadRequest, utils.ErrJSON("unreadable photo upload"))
			}
			in.PhotoMIME = fh.Header.Get(echo.HeaderContentType)
		}
	}

	model, err := s.Story.GenerateCharacterModel(in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model)
}

type sceneRequest struct {
	ProjectID  string `json:"project_id"`
	Page       int    `json:"page"`
	Text       string `json:"text,omitempty"`
	Regenerate bool   `json:"regenerate,omitempty"`
}

// POST /api/scene
func (s *Server) handlePostScene(c echo.Context) error {
	var req sceneRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("invalid json"))
	}
	if _, _, err := s.loadAuthorized(c, req.ProjectID); err != nil {
		return httpError(err)
	}
	res, err := s.Scenes.GenerateScene(c.Request().Context(), scene.GenerateInput{
		ProjectID:  req.ProjectID,
		Page:       req.Page,
		Text:       req.Text,
		Regenerate: req.Regenerate,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type pinRequest struct {
	ProjectID string `json:"project_id"`
	Page      int    `json:"page"`
	ImageURL  string `json:"image_url"`
}

// POST /api/illustration
func (s *Server) handlePostIllustration(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("invalid json"))
	}
	if _, _, err := s.loadAuthorized(c, req.ProjectID); err != nil {
		return httpError(err)
	}
	rec, err := s.Scenes.SetIllustration(c.Request().Context(), req.ProjectID, req.Page, req.ImageURL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// GET /api/project/:id
func (s *Server) handleGetProject(c echo.Context) error {
	p, _, err := s.loadAuthorized(c, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}
