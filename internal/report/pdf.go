// Package report renders a consultation aggregate into a paginated,
// localized PDF entirely on the client. Font and signature loading are
// degrade paths: their failure changes the output, never aborts it.
package report

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/model"
)

// Signature bounding box and layout constants, in millimetres.
const (
	sigBoxW    = 60.0
	sigBoxH    = 25.0
	lineH      = 6.0
	bannerH    = 22.0
	sectionGap = 4.0
)

// coreFont is the built-in family used when no script font is loaded. Its
// glyph repertoire is single-byte; text emitted with it must stay within
// that range.
const coreFont = "Helvetica"

// StaticFetcher retrieves a stored file by name. *api.Client satisfies it.
type StaticFetcher interface {
	FetchStatic(ctx context.Context, filename string) ([]byte, error)
}

// Renderer produces take-home report PDFs.
type Renderer struct {
	fontDir string
	fetch   StaticFetcher
	log     zerolog.Logger
	now     func() time.Time
}

func NewRenderer(fontDir string, fetch StaticFetcher, log zerolog.Logger) *Renderer {
	return &Renderer{fontDir: fontDir, fetch: fetch, log: log, now: time.Now}
}

// Filename derives the deterministic download name for a consultation.
func Filename(consultationID int64) string {
	return fmt.Sprintf("consultation-%d-report.pdf", consultationID)
}

// Render serializes the consultation into a PDF in the requested display
// language and returns the document bytes plus its download filename.
func (r *Renderer) Render(ctx context.Context, c *model.Consultation, lang string) ([]byte, string, error) {
	labels, fontFile := resolve(lang)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(labels.Title, true)
	pdf.SetAutoPageBreak(false, 0)

	family := r.loadFont(pdf, fontFile)
	degraded := fontFile != "" && family == coreFont
	if degraded {
		// The core font cannot shape this language's script: captions
		// switch to the fallback label set and body runes outside the
		// core repertoire are substituted before layout.
		labels = fallbackLabels()
		r.log.Debug().Str("language", lang).Msg("script font unavailable, rendering with fallback labels")
	}
	pageW, pageH := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	contentW := pageW - left - right
	d := &doc{pdf: pdf, family: family, degraded: degraded, bottom: pageH - 20, width: contentW}

	pdf.AddPage()
	r.banner(d, labels, c)
	r.identity(d, labels, c)

	if pr := c.PatientReport; pr != nil {
		d.section(labels.DiagnosisSummary, pr.DiagnosisSummary, sectionPlain)
		d.section(labels.Medications, pr.MedicationInstructions, sectionPlain)
		d.section(labels.WarningSigns, pr.WarningSigns, sectionAlert)
		d.section(labels.Instructions, pr.Content, sectionPlain)
	}

	r.footer(ctx, d, labels, c)

	if err := pdf.Error(); err != nil {
		return nil, "", fmt.Errorf("render report: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("write report: %w", err)
	}
	return buf.Bytes(), Filename(c.ID), nil
}

// loadFont registers the script font for non-Latin languages, returning the
// font family to use. A missing or unreadable font file degrades to the
// core font instead of failing the export.
func (r *Renderer) loadFont(pdf *fpdf.Fpdf, fontFile string) string {
	if fontFile == "" {
		return coreFont
	}
	raw, err := os.ReadFile(filepath.Join(r.fontDir, fontFile))
	if err != nil {
		r.log.Debug().Err(err).Str("font", fontFile).Msg("font unavailable, using core font")
		return coreFont
	}
	pdf.AddUTF8FontFromBytes("script", "", raw)
	pdf.AddUTF8FontFromBytes("script", "B", raw)
	if err := pdf.Error(); err != nil {
		// A corrupt font must not poison the document.
		r.log.Debug().Err(err).Str("font", fontFile).Msg("font rejected, using core font")
		pdf.ClearError()
		return coreFont
	}
	return "script"
}

func (r *Renderer) banner(d *doc, labels labelSet, c *model.Consultation) {
	pdf := d.pdf
	pageW, _ := pdf.GetPageSize()
	pdf.SetFillColor(13, 148, 136)
	pdf.Rect(0, 0, pageW, bannerH, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(d.family, "B", 16)
	pdf.SetXY(10, 6)
	pdf.CellFormat(pageW-20, 7, d.tr(labels.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(d.family, "", 10)
	pdf.SetX(10)
	pdf.CellFormat(pageW-20, 5, d.tr(fmt.Sprintf("%s: %s", labels.VisitDate, c.CreatedAt.Format("02 Jan 2006"))), "", 1, "L", false, 0, "")

	pdf.SetTextColor(30, 30, 30)
	pdf.SetY(bannerH + 6)
}

func (r *Renderer) identity(d *doc, labels labelSet, c *model.Consultation) {
	pdf := d.pdf
	pdf.SetFont(d.family, "", 11)

	row := func(caption, value string) {
		if value == "" {
			return
		}
		d.ensure(lineH)
		pdf.SetFont(d.family, "B", 11)
		pdf.CellFormat(35, lineH, d.tr(caption), "", 0, "L", false, 0, "")
		pdf.SetFont(d.family, "", 11)
		pdf.CellFormat(d.width-35, lineH, d.tr(value), "", 1, "L", false, 0, "")
	}
	row(labels.Patient, c.PatientName)
	if c.PatientUID != nil {
		row(labels.PatientID, *c.PatientUID)
	}
	row(labels.Doctor, c.DoctorName)
	pdf.Ln(sectionGap)
}

func (r *Renderer) footer(ctx context.Context, d *doc, labels labelSet, c *model.Consultation) {
	pdf := d.pdf
	pdf.Ln(sectionGap)

	d.ensure(lineH)
	pdf.SetFont(d.family, "", 9)
	pdf.SetTextColor(110, 110, 110)
	stamp := fmt.Sprintf("%s: %s", labels.GeneratedAt, r.now().UTC().Format("02 Jan 2006 15:04 UTC"))
	pdf.CellFormat(d.width, lineH, d.tr(stamp), "", 1, "L", false, 0, "")
	pdf.SetTextColor(30, 30, 30)

	if r.signatureImage(ctx, d, c) {
		return
	}
	// Text-only signature line.
	d.ensure(lineH * 2)
	pdf.Ln(lineH)
	pdf.SetFont(d.family, "B", 11)
	pdf.CellFormat(d.width, lineH, d.tr(c.DoctorName), "", 1, "L", false, 0, "")
	pdf.SetFont(d.family, "", 10)
	pdf.CellFormat(d.width, lineH, d.tr(labels.Signature), "", 1, "L", false, 0, "")
}

// signatureImage embeds the doctor's signature scaled into a fixed box,
// preserving aspect ratio. Any failure along the way (no reference, fetch
// error, undecodable image) reports false so the caller falls back to the
// text-only line; it never fails the export.
func (r *Renderer) signatureImage(ctx context.Context, d *doc, c *model.Consultation) bool {
	if c.DoctorSignatureFilename == nil || *c.DoctorSignatureFilename == "" || r.fetch == nil {
		return false
	}
	raw, err := r.fetch.FetchStatic(ctx, *c.DoctorSignatureFilename)
	if err != nil {
		r.log.Debug().Err(err).Msg("signature fetch failed, using text signature")
		return false
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		r.log.Debug().Err(err).Msg("signature not decodable, using text signature")
		return false
	}

	scale := sigBoxW / float64(cfg.Width)
	if h := sigBoxH / float64(cfg.Height); h < scale {
		scale = h
	}
	w := float64(cfg.Width) * scale
	h := float64(cfg.Height) * scale

	pdf := d.pdf
	d.ensure(h + lineH*2)
	pdf.Ln(lineH / 2)
	opts := fpdf.ImageOptions{ImageType: format, ReadDpi: false}
	pdf.RegisterImageOptionsReader(*c.DoctorSignatureFilename, opts, bytes.NewReader(raw))
	if err := pdf.Error(); err != nil {
		r.log.Debug().Err(err).Msg("signature rejected by renderer, using text signature")
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions(*c.DoctorSignatureFilename, pdf.GetX(), pdf.GetY(), w, h, true, opts, 0, "")
	pdf.SetFont(d.family, "B", 11)
	pdf.CellFormat(d.width, lineH, d.tr(c.DoctorName), "", 1, "L", false, 0, "")
	return true
}

// sectionStyle selects plain or alert styling for a section.
type sectionStyle int

const (
	sectionPlain sectionStyle = iota
	sectionAlert
)

// doc wraps an Fpdf with per-line page-break accounting. Break decisions
// happen before every emitted line, not per section, so long sections span
// pages and short ones never force a spurious break.
type doc struct {
	pdf      *fpdf.Fpdf
	family   string
	degraded bool
	bottom   float64
	width    float64
}

// tr makes a string safe for the active font. With the embedded script
// font it is the identity; on the core-font degrade path every rune
// outside the single-byte repertoire is substituted, so width lookups in
// SplitText and CellFormat stay in range.
func (d *doc) tr(s string) string {
	if !d.degraded {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r < 0x100 {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

// ensure starts a new page when fewer than h millimetres remain.
func (d *doc) ensure(h float64) {
	if d.pdf.GetY()+h > d.bottom {
		d.pdf.AddPage()
	}
}

// section emits a heading plus wrapped body text. Empty bodies are skipped
// entirely, heading included.
func (d *doc) section(title, body string, style sectionStyle) {
	if body == "" {
		return
	}
	pdf := d.pdf

	d.ensure(lineH)
	if style == sectionAlert {
		pdf.SetTextColor(185, 28, 28)
		pdf.SetFillColor(254, 226, 226)
	} else {
		pdf.SetTextColor(13, 110, 100)
		pdf.SetFillColor(240, 253, 250)
	}
	pdf.SetFont(d.family, "B", 12)
	pdf.CellFormat(d.width, lineH+1, d.tr(title), "", 1, "L", true, 0, "")

	if style == sectionAlert {
		pdf.SetTextColor(120, 20, 20)
	} else {
		pdf.SetTextColor(30, 30, 30)
	}
	pdf.SetFont(d.family, "", 11)
	for _, line := range pdf.SplitText(d.tr(body), d.width) {
		d.ensure(lineH)
		pdf.CellFormat(d.width, lineH, line, "", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(30, 30, 30)
	pdf.Ln(sectionGap)
}
