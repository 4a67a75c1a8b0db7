package v1

import "context"

// UserInfo is the resolved identity a request carries. Authentication happens
// in front of the core; the logic layer only reads the user id and language.
type UserInfo interface {
	GetUserID() string
	GetLang() string
}

type _userInfo struct {
	userID string
	lang   string
}

func (u *_userInfo) GetUserID() string {
	return u.userID
}

func (u *_userInfo) GetLang() string {
	return u.lang
}

func SetupUserInfo(ctx context.Context) UserInfo {
	userID, _ := InjectUserID(ctx)
	return &_userInfo{userID: userID, lang: InjectLang(ctx)}
}
