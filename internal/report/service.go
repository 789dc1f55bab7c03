package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"github.com/sirupsen/logrus"

	"medical-review-assistant/internal/consultation"
	"medical-review-assistant/internal/evidence"
	"medical-review-assistant/internal/review"
)

var ErrNoFont = errors.New("no usable TTF font found")

// DefaultFontPaths covers the DejaVu locations of Alpine and Debian images.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

type TelegramClient interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	log          *logrus.Logger

	FontPaths []string
	now       func() time.Time
}

func NewService(tg TelegramClient, doctorChatID int64, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		log:          logger,
		FontPaths:    DefaultFontPaths,
		now:          time.Now,
	}
}

// SendDoctorReport renders the validated document and delivers it to the
// doctor chat, a short summary first and the PDF after.
func (s *Service) SendDoctorReport(ctx context.Context, c consultation.Consultation) error {
	entry := s.log.WithField("consultation_id", c.ID)
	if s.doctorChatID == 0 {
		return errors.New("doctor chat id is not configured")
	}

	data, err := s.Render(c)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.tgClient.SendMessage(s.doctorChatID, summary(c)); err != nil {
		entry.WithError(err).Warn("telegram summary failed")
		return err
	}

	fileName := fmt.Sprintf("report_%s.pdf", c.ID.String())
	entry.WithField("chat_id", s.doctorChatID).Info("sending PDF report")
	if err := s.tgClient.SendDocument(s.doctorChatID, data, fileName); err != nil {
		entry.WithError(err).Error("telegram document failed")
		return err
	}
	return nil
}

// Render lays out every section of the consultation in display order.
// The validated document is used when present, the generated one otherwise.
func (s *Service) Render(c consultation.Consultation) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error = ErrNoFont
	fontLoaded := false
	for _, path := range s.FontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			s.log.WithField("path", path).Debug("loaded PDF font")
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, install ttf-dejavu: %w", fontErr)
	}

	content := c.Source
	if c.Final != nil {
		content = *c.Final
	}

	w := &writer{pdf: &pdf}
	w.line(20, "Consultation report")
	w.gap(10)
	w.line(11, fmt.Sprintf("Date: %s", s.now().Format("02.01.2006 15:04")))
	w.line(11, fmt.Sprintf("Patient: %s (%s)", displayName(c.Patient), c.PatientID))
	w.line(11, fmt.Sprintf("Complaint: %s", c.Patient.Complaint))
	w.line(11, fmt.Sprintf("Status: %s", c.Status))
	w.gap(10)

	for _, b := range Blocks(content) {
		w.line(14, b.Title)
		for _, l := range b.Lines {
			w.wrapped(11, l)
		}
		w.gap(8)
	}
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Block is one titled section of the rendered report.
type Block struct {
	Title string
	Lines []string
}

func Blocks(content review.Content) []Block {
	out := make([]Block, 0, len(review.Sections))
	for _, id := range review.Sections {
		b := Block{Title: id.Label()}
		switch id {
		case review.SectionReport:
			b.Lines = paragraphs(content.Report)
		case review.SectionDiagnosis:
			d := content.Diagnosis
			b.Lines = append(b.Lines, "Principal: "+orDash(d.Principal))
			if d.Confidence != "" {
				b.Lines = append(b.Lines, "Confidence: "+d.Confidence)
			}
			for _, diff := range d.Differentials {
				b.Lines = append(b.Lines, "- "+diff)
			}
		case review.SectionTests:
			for _, t := range content.Tests.Biology {
				b.Lines = append(b.Lines, "- Biology: "+t)
			}
			for _, t := range content.Tests.Imaging {
				b.Lines = append(b.Lines, "- Imaging: "+t)
			}
		case review.SectionPrescription:
			for _, p := range content.Prescription {
				b.Lines = append(b.Lines, "- "+p)
			}
		case review.SectionEvidence:
			b.Lines = evidenceLines(content.Evidence)
		}
		if len(b.Lines) == 0 {
			b.Lines = []string{"-"}
		}
		out = append(out, b)
	}
	return out
}

func evidenceLines(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var articles []evidence.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return []string{string(raw)}
	}
	lines := make([]string, 0, len(articles))
	for _, a := range articles {
		ref := a.Title
		if a.Journal != "" {
			ref += ". " + a.Journal
		}
		if a.Year != 0 {
			ref += fmt.Sprintf(" (%d)", a.Year)
		}
		if a.PMID != "" {
			ref += " PMID " + a.PMID
		}
		lines = append(lines, "- "+ref)
	}
	return lines
}

func summary(c consultation.Consultation) string {
	content := c.Source
	if c.Final != nil {
		content = *c.Final
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Consultation %s finalized\n", c.ID)
	fmt.Fprintf(&sb, "Patient: %s\n", displayName(c.Patient))
	fmt.Fprintf(&sb, "Diagnosis: %s\n", orDash(content.Diagnosis.Principal))
	fmt.Fprintf(&sb, "Prescription lines: %d", len(content.Prescription))
	return sb.String()
}

func displayName(p consultation.Patient) string {
	if p.Name == "" {
		return "unnamed patient"
	}
	return p.Name
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func paragraphs(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// writer keeps the first gopdf error so layout code stays linear.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

const (
	lineWidth    = 500
	bottomMargin = 800
)

func (w *writer) line(size float64, text string) {
	if w.err != nil {
		return
	}
	if w.err = w.pdf.SetFont("DejaVu", "", size); w.err != nil {
		return
	}
	w.breakPage()
	w.err = w.pdf.Cell(nil, text)
	w.pdf.Br(size + 4)
}

func (w *writer) wrapped(size float64, text string) {
	if w.err != nil {
		return
	}
	if w.err = w.pdf.SetFont("DejaVu", "", size); w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, lineWidth)
	if err != nil {
		lines = []string{text}
	}
	for _, l := range lines {
		w.line(size, l)
	}
}

func (w *writer) gap(h float64) {
	w.pdf.Br(h)
}

func (w *writer) breakPage() {
	if w.pdf.GetY() > bottomMargin {
		w.pdf.AddPage()
	}
}
