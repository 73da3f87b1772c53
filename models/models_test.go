package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseblog/pulse/config"
)

func TestGroupStringIsTitle(t *testing.T) {
	g := Group{Title: "Travel notes", Slug: "travel"}
	assert.Equal(t, "Travel notes", g.String())
}

func TestPostExcerpt(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"shorter than limit", "hello", 15, "hello"},
		{"exactly at limit", "123456789012345", 15, "123456789012345"},
		{"truncated", "a very long post body that keeps going", 15, "a very long pos"},
		{"multibyte runes", "привет из тестов", 6, "привет"},
		{"non-positive limit returns full text", "hello", 0, "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Post{Text: tt.text}
			assert.Equal(t, tt.want, p.Excerpt(tt.n))
		})
	}
}

func TestPostJSONUsesConfiguredExcerptLength(t *testing.T) {
	config.Override(config.AppConfig{JWTSecret: "test-secret", ExcerptLength: 6})

	b, err := json.Marshal(Post{Text: "привет из тестов"})
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "привет", m["excerpt"])
	assert.Equal(t, "привет из тестов", m["text"])
}
