package v1

import (
	"context"
	"database/sql"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

type SessionLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewSessionLogic(ctx context.Context, core *core.Core) *SessionLogic {
	return &SessionLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx),
	}
}

func (l *SessionLogic) Create(title, description, category string) (*types.Session, error) {
	if l.GetUserID() == "" {
		return nil, errors.New("SessionLogic.Create.GetUserID", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized)
	}
	now := time.Now().Unix()
	session := types.Session{
		ID:          utils.GenUniqIDStr(),
		UserID:      l.GetUserID(),
		Title:       title,
		Description: description,
		Category:    category,
		ProjectData: types.JSONMap{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.core.Store().SessionStore().Create(l.ctx, session); err != nil {
		return nil, errors.New("SessionLogic.Create.SessionStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return &session, nil
}

// Get returns a session owned by the current user.
func (l *SessionLogic) Get(id string) (*types.Session, error) {
	session, err := l.core.Store().SessionStore().Get(l.ctx, id)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("SessionLogic.Get.SessionStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if session == nil {
		return nil, errors.New("SessionLogic.Get.SessionStore.Get.nil", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if session.UserID != l.GetUserID() {
		return nil, errors.New("SessionLogic.Get.unauth", i18n.ERROR_FORBIDDEN, nil).Code(http.StatusForbidden)
	}
	return session, nil
}

// Ensure returns the session, creating it on first use. An empty id creates a
// fresh session.
func (l *SessionLogic) Ensure(id string) (*types.Session, error) {
	if id == "" {
		return l.Create("", "", "")
	}
	session, err := l.core.Store().SessionStore().Get(l.ctx, id)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("SessionLogic.Ensure.SessionStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if session != nil {
		if session.UserID != l.GetUserID() {
			return nil, errors.New("SessionLogic.Ensure.unauth", i18n.ERROR_FORBIDDEN, nil).Code(http.StatusForbidden)
		}
		return session, nil
	}

	now := time.Now().Unix()
	created := types.Session{
		ID:          id,
		UserID:      l.GetUserID(),
		ProjectData: types.JSONMap{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = l.core.Store().SessionStore().Create(l.ctx, created); err != nil {
		return nil, errors.New("SessionLogic.Ensure.SessionStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return &created, nil
}

func (l *SessionLogic) List(page, pageSize uint64) ([]*types.Session, error) {
	list, err := l.core.Store().SessionStore().List(l.ctx, types.ListSessionOptions{
		UserID:     l.GetUserID(),
		OnlyActive: true,
	}, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("SessionLogic.List.SessionStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *SessionLogic) Update(id string, args store.UpdateSessionArgs) (*types.Session, error) {
	if _, err := l.Get(id); err != nil {
		return nil, errors.Trace("SessionLogic.Update", err)
	}
	if err := l.core.Store().SessionStore().Update(l.ctx, id, args); err != nil {
		return nil, errors.New("SessionLogic.Update.SessionStore.Update", i18n.ERROR_INTERNAL, err)
	}
	return l.Get(id)
}

func (l *SessionLogic) Rename(id, title string) (*types.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("SessionLogic.Rename.title", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	return l.Update(id, store.UpdateSessionArgs{Title: &title})
}

// Delete only deactivates the session; its messages and assets stay.
func (l *SessionLogic) Delete(id string) error {
	if _, err := l.Get(id); err != nil {
		return errors.Trace("SessionLogic.Delete", err)
	}
	if err := l.core.Store().SessionStore().SetActive(l.ctx, id, false); err != nil {
		return errors.New("SessionLogic.Delete.SessionStore.SetActive", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

const GENERATED_MARKER = "generated images:"

var generatedMarkerRe = regexp.MustCompile(`generated images:\s*(https?://[^\s,\]\)]+)`)

// MessageLogic is the append-only message log of a session.
type MessageLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewMessageLogic(ctx context.Context, core *core.Core) *MessageLogic {
	return &MessageLogic{ctx: ctx, core: core}
}

func (l *MessageLogic) Append(msg types.Message) (*types.Message, error) {
	if msg.ID == "" {
		msg.ID = utils.GenUniqIDStr()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}
	if err := l.core.Store().MessageStore().Create(l.ctx, msg); err != nil {
		return nil, errors.New("MessageLogic.Append.MessageStore.Create", i18n.ERROR_INTERNAL, err)
	}
	if err := l.core.Store().SessionStore().Touch(l.ctx, msg.SessionID); err != nil && err != sql.ErrNoRows {
		return nil, errors.New("MessageLogic.Append.SessionStore.Touch", i18n.ERROR_INTERNAL, err)
	}
	return &msg, nil
}

// AppendAssistant writes one assistant message. Generated urls are also
// written into the text after the marker so later turns can find them.
func (l *MessageLogic) AppendAssistant(sessionID, userID, content string, meta types.MessageMeta) (*types.Message, error) {
	if len(meta.GeneratedURLs) > 0 && !strings.Contains(content, GENERATED_MARKER) {
		content = strings.TrimSpace(content + "\n\n" + GENERATED_MARKER + " " + strings.Join(meta.GeneratedURLs, ", "))
	}
	return l.Append(types.Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      types.ROLE_ASSISTANT,
		Content:   content,
		Metadata:  meta,
	})
}

func (l *MessageLogic) Recent(sessionID string, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		limit = l.core.Cfg().Studio.HistoryLimit
	}
	list, err := l.core.Store().MessageStore().ListRecent(l.ctx, sessionID, uint64(limit))
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("MessageLogic.Recent.MessageStore.ListRecent", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

// LastGeneratedURL scans assistant messages, newest first, for the generated
// images marker and returns the last url it lists.
func LastGeneratedURL(history []*types.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if !m.IsAssistant() {
			continue
		}
		if n := len(m.Metadata.GeneratedURLs); n > 0 {
			return m.Metadata.GeneratedURLs[n-1]
		}
		matches := generatedMarkerRe.FindAllStringSubmatch(m.Content, -1)
		if len(matches) == 0 {
			continue
		}
		// the marker lists urls comma separated; take the tail of the line
		line := m.Content[strings.LastIndex(m.Content, GENERATED_MARKER):]
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		urls := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, GENERATED_MARKER)), ",")
		if last := strings.TrimSpace(urls[len(urls)-1]); utils.IsURL(last) {
			return last
		}
		return matches[len(matches)-1][1]
	}
	return ""
}
