package types

import (
	"path"
	"time"
)

func GenS3FilePath(userID, _type, fileName string) string {
	return path.Join(FIXED_S3_UPLOAD_PATH_PREFIX, userID, _type, time.Now().Format("20060102"), fileName)
}
