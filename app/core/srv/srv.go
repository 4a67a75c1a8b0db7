package srv

import (
	"github.com/atelier-studio/atelier/pkg/media"
	"github.com/atelier-studio/atelier/pkg/vendor"
)

type ApplyFunc func(s *Srv)

// Srv groups the external collaborators of the studio: language models,
// generative vendors, local media processing, web search and the realtime relay.
type Srv struct {
	ai         *AI
	vendor     *vendor.Gateway
	media      *media.Processor
	search     WebSearcher
	centrifuge CentrifugeManager
}

func SetupSrvs(opts ...ApplyFunc) *Srv {
	a := &Srv{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (s *Srv) AI() *AI {
	return s.ai
}

func (s *Srv) Vendor() *vendor.Gateway {
	return s.vendor
}

func (s *Srv) Media() *media.Processor {
	return s.media
}

func (s *Srv) Search() WebSearcher {
	return s.search
}

func (s *Srv) Centrifuge() CentrifugeManager {
	return s.centrifuge
}

func (s *Srv) Status() map[string]any {
	status := map[string]any{
		"vendor_available":     s.vendor != nil,
		"media_available":      s.media != nil,
		"search_available":     s.search != nil,
		"centrifuge_available": s.centrifuge != nil,
	}
	if s.ai != nil {
		for k, v := range s.ai.Status() {
			status[k] = v
		}
	}
	return status
}
