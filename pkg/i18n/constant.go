package i18n

var ALLOW_LANG = map[string]bool{
	"tr": true,
	"en": true,
}

const DEFAULT_LANG = "tr"

const (
	ERROR_INTERNAL          = "error.internal"
	ERROR_NOT_FOUND         = "error.notfound"
	ERROR_INVALIDARGUMENT   = "error.invalidargument"
	ERROR_UNAUTHORIZED      = "error.unauthorized"
	ERROR_FORBIDDEN         = "error.forbidden"
	ERROR_EXIST             = "error.exist"
	ERROR_TOO_MANY_REQUESTS = "error.tooManyRequests"
	ERROR_SESSION_BUSY      = "error.session.busy"

	MESSAGE_VIDEO_STARTING        = "message.video.starting"
	MESSAGE_LONG_VIDEO_STARTING   = "message.long_video.starting"
	MESSAGE_VIDEO_READY           = "message.video.ready"
	MESSAGE_LONG_VIDEO_READY      = "message.long_video.ready"
	MESSAGE_BACKGROUND_FAILED     = "message.background.failed"
	MESSAGE_BACKGROUND_CRASHED    = "message.background.crashed"
	MESSAGE_DUPLICATE_ENTITY      = "message.entity.duplicate"
	MESSAGE_VIDEO_TOO_LONG        = "message.video.too_long"
	MESSAGE_LONG_VIDEO_NEEDS_PLAN = "message.long_video.needs_plan"
	MESSAGE_TURN_FAILED           = "message.turn.failed"
	MESSAGE_STREAM_STOPPED        = "message.stream.stopped"
	MESSAGE_EDIT_APPLIED          = "message.edit.applied"
)
