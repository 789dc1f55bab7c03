package report

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-review-assistant/internal/consultation"
	"medical-review-assistant/internal/review"
)

type fakeTelegram struct {
	messages []string
	docs     []string
	docErr   error
}

func (f *fakeTelegram) SendMessage(chatID int64, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeTelegram) SendDocument(chatID int64, fileData []byte, fileName string) error {
	if f.docErr != nil {
		return f.docErr
	}
	f.docs = append(f.docs, fileName)
	return nil
}

func testConsultation() consultation.Consultation {
	return consultation.Consultation{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		Patient:   consultation.Patient{Name: "A. Martin", Complaint: "toux"},
		Status:    consultation.StatusFinalized,
		Source: review.Content{
			Report:    "generated",
			Diagnosis: review.Diagnosis{Principal: "Bronchite"},
		},
		Final: &review.Content{
			Report:       "Toux depuis 5 jours.\nPas de fièvre.",
			Diagnosis:    review.Diagnosis{Principal: "Bronchite aiguë", Confidence: "élevée", Differentials: []string{"Pneumopathie"}},
			Tests:        review.Tests{Biology: []string{"NFS"}, Imaging: []string{"Radiographie thoracique"}},
			Prescription: []string{"Paracétamol 1 g x3/j"},
			Evidence:     []byte(`[{"title":"Acute bronchitis","journal":"BMJ","year":"2020","pmid":"123"}]`),
		},
	}
}

func fontOrSkip(t *testing.T) {
	t.Helper()
	for _, p := range DefaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			return
		}
	}
	t.Skip("DejaVu font not installed")
}

func TestBlocks(t *testing.T) {
	c := testConsultation()
	blocks := Blocks(*c.Final)

	require.Len(t, blocks, len(review.Sections))
	titles := make([]string, len(blocks))
	for i, b := range blocks {
		titles[i] = b.Title
	}
	assert.Equal(t, []string{"Report", "Diagnosis", "Tests", "Prescription", "Evidence"}, titles)

	assert.Equal(t, []string{"Toux depuis 5 jours.", "Pas de fièvre."}, blocks[0].Lines)
	assert.Equal(t, []string{"Principal: Bronchite aiguë", "Confidence: élevée", "- Pneumopathie"}, blocks[1].Lines)
	assert.Equal(t, []string{"- Biology: NFS", "- Imaging: Radiographie thoracique"}, blocks[2].Lines)
	assert.Equal(t, []string{"- Acute bronchitis. BMJ (2020) PMID 123"}, blocks[4].Lines)
}

func TestBlocksEmptySections(t *testing.T) {
	blocks := Blocks(review.Content{})
	for _, b := range blocks {
		assert.NotEmpty(t, b.Lines, b.Title)
	}
}

func TestSummaryPrefersFinal(t *testing.T) {
	c := testConsultation()
	assert.Contains(t, summary(c), "Bronchite aiguë")

	c.Final = nil
	assert.Contains(t, summary(c), "Diagnosis: Bronchite\n")
}

func TestRenderMissingFont(t *testing.T) {
	svc := NewService(&fakeTelegram{}, 1, logrus.New())
	svc.FontPaths = []string{"/nonexistent/font.ttf"}

	_, err := svc.Render(testConsultation())
	assert.Error(t, err)
}

func TestSendDoctorReport(t *testing.T) {
	fontOrSkip(t)
	tg := &fakeTelegram{}
	svc := NewService(tg, 42, logrus.New())
	c := testConsultation()

	require.NoError(t, svc.SendDoctorReport(context.Background(), c))
	require.Len(t, tg.messages, 1)
	assert.Contains(t, tg.messages[0], "A. Martin")
	assert.Equal(t, []string{"report_" + c.ID.String() + ".pdf"}, tg.docs)
}

func TestSendDoctorReportErrors(t *testing.T) {
	svc := NewService(&fakeTelegram{}, 0, logrus.New())
	assert.Error(t, svc.SendDoctorReport(context.Background(), testConsultation()))

	fontOrSkip(t)
	tg := &fakeTelegram{docErr: errors.New("chat not found")}
	svc = NewService(tg, 42, logrus.New())
	assert.EqualError(t, svc.SendDoctorReport(context.Background(), testConsultation()), "chat not found")
}
