package response

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/utils"
)

func ProvideResponseLocalizer(l i18n.Localizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("i18n", l)
	}
}

func InjectResponseLocalizer(c *gin.Context) i18n.Localizer {
	return c.MustGet("i18n").(i18n.Localizer)
}

const (
	RequestIDKey = "request_id"
	ResponseKey  = "response_key"
)

type Response struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

type Meta struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// NewResponse prepares the envelope every handler fills.
func NewResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = utils.GenRandomID()
		}
		c.Set(RequestIDKey, requestID)
		c.Set(ResponseKey, &Response{Meta: Meta{Code: http.StatusOK, RequestID: requestID}})
	}
}

func GetLangFromRequestOrDefault(c *gin.Context) string {
	for _, l := range utils.ParseAcceptLanguage(c.Request.Header.Get("Accept-Language")) {
		if i18n.ALLOW_LANG[l.Tag] {
			return l.Tag
		}
	}
	return i18n.DEFAULT_LANG
}

func APIError(c *gin.Context, err error) {
	c.Abort()
	l := InjectResponseLocalizer(c)

	res := c.MustGet(ResponseKey).(*Response)
	var httpStatus int
	var cerr *errors.CustomizedError
	if !errors.As(err, &cerr) {
		res.Meta.Code = http.StatusInternalServerError
		res.Meta.Message = err.Error()
		httpStatus = res.Meta.Code
	} else {
		res.Meta.Code = cerr.GetCode()
		res.Meta.Message = l.GetWithData(GetLangFromRequestOrDefault(c), cerr.Message(), cerr.Data())
		httpStatus = cerr.GetCode()
	}

	c.JSON(httpStatus, res)
	printErrorLog(c, res, err)
}

func printErrorLog(c *gin.Context, res *Response, err error) {
	slog.Error("response error",
		slog.String("request_uri", c.Request.URL.Path),
		slog.String("request_id", res.Meta.RequestID),
		slog.Int("code", res.Meta.Code),
		slog.Int64("end_time", time.Now().Unix()),
		slog.String("error", err.Error()))
}

func printSuccessLog(c *gin.Context, res *Response) {
	slog.Debug("request success",
		slog.String("request_uri", c.Request.URL.Path),
		slog.String("request_id", res.Meta.RequestID),
		slog.String("params", c.Request.URL.Query().Encode()),
		slog.Int64("end_time", time.Now().Unix()))
}

func APISuccess(c *gin.Context, response interface{}) {
	c.Abort()
	res := c.MustGet(ResponseKey).(*Response)
	if response != nil {
		res.Data = response
	}
	c.JSON(http.StatusOK, res)
	printSuccessLog(c, res)
}
