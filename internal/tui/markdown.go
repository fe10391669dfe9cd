package tui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Keyed by style and wrap width. WithAutoStyle is avoided since its terminal
	// queries can block.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// renderBody renders a message body as compact markdown wrapped to width. Plain
// text comes back unchanged apart from wrapping; on any renderer error the raw
// text is returned.
func renderBody(text string, width int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	r := compactRenderer(themeName(), width)
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	lines := strings.Split(strings.Trim(out, "\n"), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " ")
	}
	return strings.Join(lines, "\n")
}

func compactRenderer(styleName string, width int) *glamour.TermRenderer {
	profile := lipgloss.ColorProfile()
	key := styleName + ":" + strconv.Itoa(int(profile)) + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	if r := mdRenderers[key]; r != nil {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(compactStyleConfig(styleName)),
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(profile),
	)
	if err != nil {
		return nil
	}
	mdRenderers[key] = r
	return r
}

// compactStyleConfig strips block margins: chat bubbles are dense and the border
// already provides the padding.
func compactStyleConfig(styleName string) ansi.StyleConfig {
	cfg := styles.DarkStyleConfig
	if styleName == "light" {
		cfg = styles.LightStyleConfig
	}
	zero := uint(0)
	cfg.Document.Margin = &zero
	cfg.Document.BlockPrefix = ""
	cfg.Document.BlockSuffix = ""
	cfg.Paragraph.Margin = &zero
	cfg.BlockQuote.Margin = &zero
	cfg.List.Margin = &zero
	cfg.Heading.Margin = &zero
	cfg.Code.Margin = &zero
	cfg.CodeBlock.Margin = &zero
	return cfg
}
