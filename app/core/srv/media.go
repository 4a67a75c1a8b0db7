package srv

import (
	"github.com/atelier-studio/atelier/pkg/media"
)

type MediaConfig struct {
	FFmpegPath string `toml:"ffmpeg_path"`
	WorkDir    string `toml:"work_dir"`
}

func ApplyMedia(cfg MediaConfig, opts ...media.Option) ApplyFunc {
	return func(s *Srv) {
		s.media = media.NewProcessor(cfg.FFmpegPath, cfg.WorkDir, opts...)
	}
}
