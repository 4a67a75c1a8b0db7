package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Emre":               "emre",
		"Çağrı Öztürk":       "cagri_ozturk",
		"İstanbul Kulesi":    "istanbul_kulesi",
		"  Şişli -- Ofis!! ": "sisli_ofis",
		"Café Noir":          "cafe_noir",
		"Red_Bike 2":         "red_bike_2",
		"___":                "",
		"ĞÜŞİÖÇ":             "gusioc",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), in)
	}
}

func TestMakeIsIdempotent(t *testing.T) {
	for _, name := range []string{"Çağrı Öztürk", "Brand X / Summer", "a  b"} {
		once := Make(name)
		assert.Equal(t, once, Make(once))
	}
}

func TestTagAndNormalize(t *testing.T) {
	assert.Equal(t, "@emre", Tag("Emre"))
	assert.Equal(t, "@emre", Normalize("emre"))
	assert.Equal(t, "@emre", Normalize("@Emre"))
	assert.Equal(t, "", Tag("!!"))
}

func TestFindTags(t *testing.T) {
	tags := FindTags("put @Emre in @paris_cafe next to @emre and @x")
	assert.Equal(t, []string{"@emre", "@paris_cafe", "@x"}, tags)
	assert.Empty(t, FindTags("no tags here @"))
}
