package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextStripsAllMarkup(t *testing.T) {
	require.Equal(t, "Spring Gala", Text("<b>Spring</b> Gala"))
	require.Equal(t, "", Text("<script>alert(1)</script>"))
}

func TestHTMLKeepsSafeFormatting(t *testing.T) {
	out := HTML(`<p>Dinner &amp; <strong>auction</strong></p><script>alert(1)</script>`)
	require.Contains(t, out, "<strong>auction</strong>")
	require.NotContains(t, out, "script")
}

func TestHTMLDropsEventHandlers(t *testing.T) {
	out := HTML(`<a href="https://example.com" onclick="steal()">tickets</a>`)
	require.Contains(t, out, "https://example.com")
	require.NotContains(t, out, "onclick")
}
