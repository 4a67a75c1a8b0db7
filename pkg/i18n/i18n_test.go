package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalizer(t *testing.T) {
	l := NewLocalizer("tr", "en")

	assert.Equal(t, "Record not found.", l.Get("en", ERROR_NOT_FOUND))
	assert.Equal(t, "Kayıt bulunamadı.", l.Get("tr", ERROR_NOT_FOUND))

	msg := l.GetWithData("en", MESSAGE_VIDEO_READY, map[string]any{"URL": "https://cdn/x.mp4"})
	assert.Contains(t, msg, "https://cdn/x.mp4")
}

func TestLocalizerFallsBack(t *testing.T) {
	l := NewLocalizer("tr", "en")

	// unknown language resolves through the default language
	assert.Equal(t, "Kayıt bulunamadı.", l.Get("de", ERROR_NOT_FOUND))
	// unknown id returns the id itself
	assert.Equal(t, "no.such.id", l.Get("en", "no.such.id"))
}
