// Package render turns drafted applications into printable HTML and PDF.
package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
)

const defaultRenderTimeout = 30 * time.Second

const printCSS = `
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
body{font-family:"Noto Serif","Noto Serif CJK SC",Georgia,serif;font-size:11pt;line-height:1.55;color:#1c1917;background:#fff;margin:0;}
.doc{max-width:820px;margin:0 auto;padding:0.5rem 0.8rem;}
.doc-meta{color:#44403c;font-size:9pt;border-bottom:1px solid #a8a29e;padding-bottom:0.4rem;margin-bottom:0.8rem;}
.doc-badge{display:inline-block;background:#fef3c7;color:#78350f;border:1px solid #fcd34d;border-radius:3px;padding:0 0.4rem;margin-right:0.4rem;}
h1{font-size:16pt;text-align:center;margin:0.4rem 0 0.8rem;}
h2{font-size:12pt;border-bottom:1px solid #d6d3d1;padding-bottom:0.15rem;margin-top:1.1rem;}
blockquote{margin:0.6rem 0;padding:0.4rem 0.6rem;border-left:3px solid #92400e;background:#f9f7f3;font-size:9pt;}
h2[data-page-break-before="true"]{break-before:page;page-break-before:always;}
@media print{ @page{size:A4;margin:12mm;} }
`

// Renderer produces a PDF for a drafted application.
type Renderer interface {
	Render(ctx context.Context, env disclosure.ResponseEnvelope) ([]byte, error)
}

type ChromiumPDFRenderer struct {
	chromePath string
	timeout    time.Duration
}

// NewChromiumPDFRenderer uses chromePath when set and otherwise looks for a
// system Chromium.
func NewChromiumPDFRenderer(chromePath string, timeout time.Duration) *ChromiumPDFRenderer {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &ChromiumPDFRenderer{chromePath: chromePath, timeout: timeout}
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, env disclosure.ResponseEnvelope) ([]byte, error) {
	htmlDoc, err := HTML(env)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.6).
				WithMarginBottom(0.75).
				WithMarginLeft(0.7).
				WithMarginRight(0.7).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

// HTML renders the application's Markdown view as a standalone page.
func HTML(env disclosure.ResponseEnvelope) (string, error) {
	markdown := env.DocumentMarkdown
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("application %q has no document to render", env.Title)
	}

	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(env.Title) + "</title>" +
		"<style>" + printCSS + "</style></head><body><div class='doc'>" +
		"<div class='doc-meta'>" + metaHTML(env) + "</div>" +
		applyPrintLayoutHooks(content.String()) +
		"</div></body></html>", nil
}

func metaHTML(env disclosure.ResponseEnvelope) string {
	var out strings.Builder
	out.WriteString("<span class='doc-badge'>" + html.EscapeString(env.PatentType.Label()) + "</span>")
	out.WriteString(fmt.Sprintf("<span class='doc-badge'>%d claims</span>", len(env.Claims)))
	out.WriteString(fmt.Sprintf("<span class='doc-badge'>Completeness %.1f/100</span>", env.Validation.CompletenessScore))
	return out.String()
}

var claimsHeading = regexp.MustCompile(`<h2([^>]*)>\s*` + regexp.QuoteMeta(disclosure.SectionClaims) + `\s*</h2>`)

// applyPrintLayoutHooks starts the claims on a new page.
func applyPrintLayoutHooks(contentHTML string) string {
	return claimsHeading.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">`+disclosure.SectionClaims+`</h2>`)
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
