package httpadapter

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/config"
	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

type uploaderFake struct {
	gotFilename string
	gotBody     []byte
	doc         *domain.Document
	err         error
}

func (f *uploaderFake) Upload(_ context.Context, filename, _ string, body io.Reader) (*domain.Document, error) {
	f.gotFilename = filename
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.gotBody = data
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type lifecycleFake struct {
	docs        map[string]*domain.Document
	gotOptions  domain.AnalysisOptions
	gotLimit    int
	gotOffset   int
	session     *domain.PaymentSession
	beginErr    error
	listResults []domain.Document
	originals   map[string][]byte
}

func (f *lifecycleFake) Create(context.Context, domain.NewDocument) (*domain.Document, error) {
	return nil, nil
}

func (f *lifecycleFake) BeginPayment(_ context.Context, documentID string, options domain.AnalysisOptions) (*domain.PaymentSession, error) {
	f.gotOptions = options
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	if _, ok := f.docs[documentID]; !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "begin payment", io.EOF)
	}
	return f.session, nil
}

func (f *lifecycleFake) Get(_ context.Context, documentID string) (*domain.Document, error) {
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", io.EOF)
	}
	return doc, nil
}

func (f *lifecycleFake) Original(ctx context.Context, documentID string) (*domain.Document, io.ReadCloser, error) {
	doc, err := f.Get(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	body, ok := f.originals[doc.StoragePath]
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrDocumentNotFound, "open object", io.EOF)
	}
	return doc, io.NopCloser(bytes.NewReader(body)), nil
}

func (f *lifecycleFake) List(_ context.Context, limit, offset int) ([]domain.Document, error) {
	f.gotLimit = limit
	f.gotOffset = offset
	return f.listResults, nil
}

type paymentsFake struct {
	gotIntentID  string
	gotSignature string
	gotPayload   []byte
	doc          *domain.Document
	err          error
}

func (f *paymentsFake) Confirm(context.Context, domain.PaymentConfirmation) (*domain.Document, error) {
	return f.doc, f.err
}

func (f *paymentsFake) ConfirmFromProvider(_ context.Context, _ string, paymentIntentID string) (*domain.Document, error) {
	f.gotIntentID = paymentIntentID
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *paymentsFake) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.gotPayload = payload
	f.gotSignature = signature
	return f.err
}

type analysisFake struct {
	gotOptions domain.AnalysisOptions
	result     *domain.AnalysisResult
	doc        *domain.Document
	err        error
}

func (f *analysisFake) RequestAnalysis(_ context.Context, _ string, options domain.AnalysisOptions) (*domain.AnalysisResult, error) {
	f.gotOptions = options
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *analysisFake) Result(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type reportsFake struct {
	doc  *domain.Document
	body []byte
	err  error
}

func (f *reportsFake) Export(context.Context, string) (*domain.Document, []byte, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.doc, f.body, nil
}

type testServices struct {
	uploader  *uploaderFake
	lifecycle *lifecycleFake
	payments  *paymentsFake
	analysis  *analysisFake
	reports   *reportsFake
}

func newTestServices() *testServices {
	doc := sampleDocument()
	return &testServices{
		uploader:  &uploaderFake{doc: doc},
		lifecycle: &lifecycleFake{docs: map[string]*domain.Document{doc.ID: doc}},
		payments:  &paymentsFake{doc: doc},
		analysis:  &analysisFake{doc: doc},
		reports:   &reportsFake{doc: doc},
	}
}

func (s *testServices) services() Services {
	return Services{
		Uploader:  s.uploader,
		Lifecycle: s.lifecycle,
		Payments:  s.payments,
		Analysis:  s.analysis,
		Reports:   s.reports,
	}
}

func testConfig() config.Config {
	return config.Config{ServiceName: "document-analysis-test"}
}

func sampleDocument() *domain.Document {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:        "doc-1",
		Title:     "The Long Night",
		Filename:  "night.docx",
		MimeType:  domain.MimeTypeDOCX,
		FileSize:  2048,
		CharCount: 4200,
		Cost:      350,
		Currency:  "cny",
		Status:    domain.StatusUploaded,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
