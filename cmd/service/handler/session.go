package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/app/response"
	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

type CreateSessionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *HttpSrv) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	session, err := v1.NewSessionLogic(c, s.Core).Create(req.Title, req.Description, req.Category)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, session)
}

type ListSessionRequest struct {
	Page     uint64 `json:"page" form:"page" binding:"required"`
	PageSize uint64 `json:"pagesize" form:"pagesize" binding:"required"`
}

type ListSessionResponse struct {
	List []*types.Session `json:"list"`
}

func (s *HttpSrv) ListSessions(c *gin.Context) {
	var req ListSessionRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	list, err := v1.NewSessionLogic(c, s.Core).List(req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, ListSessionResponse{List: list})
}

func (s *HttpSrv) GetSession(c *gin.Context) {
	session, err := v1.NewSessionLogic(c, s.Core).Get(c.Param("session"))
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, session)
}

type UpdateSessionRequest struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Category    *string       `json:"category"`
	ProjectData types.JSONMap `json:"project_data"`
}

func (s *HttpSrv) UpdateSession(c *gin.Context) {
	var req UpdateSessionRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	session, err := v1.NewSessionLogic(c, s.Core).Update(c.Param("session"), store.UpdateSessionArgs{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		ProjectData: req.ProjectData,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, session)
}

func (s *HttpSrv) DeleteSession(c *gin.Context) {
	if err := v1.NewSessionLogic(c, s.Core).Delete(c.Param("session")); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type ListMessagesRequest struct {
	Limit int `json:"limit" form:"limit"`
}

type ListMessagesResponse struct {
	List []*types.Message `json:"list"`
}

func (s *HttpSrv) ListMessages(c *gin.Context) {
	var req ListMessagesRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	sessionID := c.Param("session")
	if _, err := v1.NewSessionLogic(c, s.Core).Get(sessionID); err != nil {
		response.APIError(c, err)
		return
	}
	list, err := v1.NewMessageLogic(c, s.Core).Recent(sessionID, req.Limit)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, ListMessagesResponse{List: list})
}

func (s *HttpSrv) GetPreferences(c *gin.Context) {
	userID, _ := v1.InjectUserID(c)
	prefs, err := v1.NewPreferenceLogic(c, s.Core).Get(userID)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, prefs)
}

type UpdatePreferencesRequest struct {
	AspectRatio   *string `json:"aspect_ratio"`
	Style         *string `json:"style"`
	ImageModel    *string `json:"image_model"`
	VideoModel    *string `json:"video_model"`
	AutoFaceSwap  *bool   `json:"auto_face_swap"`
	AutoUpscale   *bool   `json:"auto_upscale"`
	AutoTranslate *bool   `json:"auto_translate"`
	Language      *string `json:"language"`
}

func (s *HttpSrv) UpdatePreferences(c *gin.Context) {
	var req UpdatePreferencesRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	userID, _ := v1.InjectUserID(c)
	prefs, err := v1.NewPreferenceLogic(c, s.Core).Update(userID, func(p *types.UserPreferences) {
		setIf(&p.AspectRatio, req.AspectRatio)
		setIf(&p.Style, req.Style)
		setIf(&p.ImageModel, req.ImageModel)
		setIf(&p.VideoModel, req.VideoModel)
		setIf(&p.AutoFaceSwap, req.AutoFaceSwap)
		setIf(&p.AutoUpscale, req.AutoUpscale)
		setIf(&p.AutoTranslate, req.AutoTranslate)
		setIf(&p.Language, req.Language)
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, prefs)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
