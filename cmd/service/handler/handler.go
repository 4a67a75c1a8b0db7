package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/atelier-studio/atelier/app/core"
	v1 "github.com/atelier-studio/atelier/app/logic/v1"
)

type HttpSrv struct {
	Core   *core.Core
	Studio *v1.Studio
	Engine *gin.Engine
}
