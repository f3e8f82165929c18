package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, svc Service, text string) string {
	t.Helper()
	out, err := svc.RenderChatHTML(text)
	require.NoError(t, err)
	return out
}

func TestRenderChatHTML(t *testing.T) {
	svc := NewService()

	t.Run("plain text", func(t *testing.T) {
		assert.Equal(t, "hello there", render(t, svc, "hello there"))
	})

	t.Run("bold", func(t *testing.T) {
		assert.Equal(t, "call me <b>today</b>", render(t, svc, "call me **today**"))
	})

	t.Run("italic", func(t *testing.T) {
		assert.Equal(t, "<i>maybe</i>", render(t, svc, "*maybe*"))
	})

	t.Run("unordered list becomes bullets", func(t *testing.T) {
		out := render(t, svc, "- first\n- second")
		assert.Equal(t, "• first\n• second", out)
	})

	t.Run("ordered list becomes bullets", func(t *testing.T) {
		out := render(t, svc, "1. first\n2. second")
		assert.Equal(t, "• first\n• second", out)
	})

	t.Run("heading becomes bold line", func(t *testing.T) {
		out := render(t, svc, "# Offer\n\ndetails")
		assert.Equal(t, "<b>Offer</b>\ndetails", out)
	})

	t.Run("no block tags survive", func(t *testing.T) {
		out := render(t, svc, "# a\n\n- b\n\npara **c**")
		assert.NotContains(t, out, "<p>")
		assert.NotContains(t, out, "<ul>")
		assert.NotContains(t, out, "<li>")
		assert.NotContains(t, out, "<h1>")
		assert.NotContains(t, out, "<strong>")
	})
}

func TestRenderChatHTMLAnnotations(t *testing.T) {
	t.Run("kept by default", func(t *testing.T) {
		out := render(t, NewService(), "price list 【4:0†source】 attached")
		assert.Contains(t, out, "【4:0†source】")
	})

	t.Run("stripped when enabled", func(t *testing.T) {
		svc := NewService(WithAnnotationStripping())
		out := render(t, svc, "price list 【4:0†source】 attached")
		assert.NotContains(t, out, "【")
		assert.Contains(t, out, "price list")
		assert.Contains(t, out, "attached")
	})

	t.Run("multiple markers", func(t *testing.T) {
		svc := NewService(WithAnnotationStripping())
		out := render(t, svc, "a【1:0†x】b【2:1†y】c")
		assert.Equal(t, "abc", out)
	})
}
