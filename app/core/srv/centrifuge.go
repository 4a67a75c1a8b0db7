package srv

import (
	"context"
	"net/http"
)

// CentrifugeManager is the realtime relay seen by the core, kept as an
// interface so srv does not import the socket package.
type CentrifugeManager interface {
	PublishSessionEvent(sessionID string, eventType string, payload any) error
	RegisterStreamSignal(sessionID string, closeFunc func()) func()
	NewCloseChatStreamSignal(sessionID string) bool
	HandleWebSocket(w http.ResponseWriter, r *http.Request) error
	Shutdown(ctx context.Context) error
}

type CentrifugeSetupFunc func() (CentrifugeManager, error)

func ApplyCentrifuge(setupFunc CentrifugeSetupFunc) ApplyFunc {
	return func(s *Srv) {
		var err error
		if s.centrifuge, err = setupFunc(); err != nil {
			panic(err)
		}
	}
}
