package types

const NO_PAGINATION = 0

const (
	LANGUAGE_TR_KEY = "tr"
	LANGUAGE_EN_KEY = "en"
)

// FIXED_S3_UPLOAD_PATH_PREFIX is the object key prefix of every studio upload.
const FIXED_S3_UPLOAD_PATH_PREFIX = "studio/"

type ctxKey string

const (
	CTX_USER_ID ctxKey = "user_id"
	CTX_LANG    ctxKey = "lang"
)
