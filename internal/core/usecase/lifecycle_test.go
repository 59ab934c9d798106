package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

func validNewDocument(chars int) domain.NewDocument {
	return domain.NewDocument{
		Title:     "Story",
		Filename:  "story.pdf",
		MimeType:  domain.MimeTypePDF,
		FileSize:  2048,
		CharCount: chars,
		TextPath:  "texts/story.txt",
	}
}

func TestCreatePricesAndStoresUploadedDocument(t *testing.T) {
	w := newWorkflow()

	cases := map[int]int64{3000: 350, 60000: 800, 20000: 500}
	for chars, want := range cases {
		doc, err := w.lifecycle.Create(context.Background(), validNewDocument(chars))
		if err != nil {
			t.Fatalf("Create(%d) error = %v", chars, err)
		}
		if doc.Cost != want {
			t.Fatalf("Create(%d) cost = %d, want %d", chars, doc.Cost, want)
		}
		if doc.Status != domain.StatusUploaded {
			t.Fatalf("expected uploaded, got %s", doc.Status)
		}
		if doc.Currency != "cny" {
			t.Fatalf("expected lowercased currency, got %q", doc.Currency)
		}
		if _, err := w.repo.GetByID(context.Background(), doc.ID); err != nil {
			t.Fatalf("expected persisted document: %v", err)
		}
	}
	if w.observer.uploads != len(cases) {
		t.Fatalf("expected %d upload observations, got %d", len(cases), w.observer.uploads)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	w := newWorkflow()

	tooBig := validNewDocument(100)
	tooBig.FileSize = domain.MaxUploadBytes + 1
	if _, err := w.lifecycle.Create(context.Background(), tooBig); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for oversize, got %v", err)
	}

	wrongType := validNewDocument(100)
	wrongType.MimeType = "text/plain"
	if _, err := w.lifecycle.Create(context.Background(), wrongType); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for mime type, got %v", err)
	}

	if _, err := w.lifecycle.Create(context.Background(), validNewDocument(0)); !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction for empty text, got %v", err)
	}

	if _, err := w.lifecycle.Create(context.Background(), validNewDocument(-5)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative count, got %v", err)
	}

	if len(w.repo.docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(w.repo.docs))
	}
}

func TestBeginPaymentCreatesIntentAndMovesToPending(t *testing.T) {
	w := newWorkflow()
	w.seed("doc-1", domain.StatusUploaded, 350)

	session, err := w.lifecycle.BeginPayment(context.Background(), "doc-1", domain.AnalysisOptions{"plot"})
	if err != nil {
		t.Fatalf("BeginPayment() error = %v", err)
	}
	if session.Amount != 350 || session.ClientSecret == "" || session.PublishableKey != "pk_test_fake" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.DisplayAmount != "3.50 CNY" {
		t.Fatalf("unexpected display amount %q", session.DisplayAmount)
	}

	doc, _ := w.repo.GetByID(context.Background(), "doc-1")
	if doc.Status != domain.StatusPaymentPending || doc.PaymentIntentID != session.PaymentIntentID {
		t.Fatalf("unexpected document after begin payment: %+v", doc)
	}
	if !doc.Options.Contains(domain.KindSummary) || !doc.Options.Contains(domain.KindPlot) {
		t.Fatalf("expected normalized options stored, got %v", doc.Options)
	}
}

func TestBeginPaymentTwiceReusesIntent(t *testing.T) {
	w := newWorkflow()
	w.seed("doc-1", domain.StatusUploaded, 350)

	first, err := w.lifecycle.BeginPayment(context.Background(), "doc-1", nil)
	if err != nil {
		t.Fatalf("first BeginPayment() error = %v", err)
	}
	second, err := w.lifecycle.BeginPayment(context.Background(), "doc-1", nil)
	if err != nil {
		t.Fatalf("second BeginPayment() error = %v", err)
	}
	if first.PaymentIntentID != second.PaymentIntentID {
		t.Fatalf("expected same intent, got %s and %s", first.PaymentIntentID, second.PaymentIntentID)
	}
	if w.payments.created != 1 {
		t.Fatalf("expected one intent, got %d", w.payments.created)
	}
}

func TestBeginPaymentConcurrentCallersShareOneIntent(t *testing.T) {
	w := newWorkflow()
	w.seed("doc-1", domain.StatusUploaded, 500)

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := w.lifecycle.BeginPayment(context.Background(), "doc-1", nil)
			errs[i] = err
			if session != nil {
				ids[i] = session.PaymentIntentID
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got intent %s, want %s", i, ids[i], ids[0])
		}
	}
	if w.payments.created != 1 {
		t.Fatalf("expected one intent, got %d", w.payments.created)
	}
}

func TestBeginPaymentRejectsWrongStatus(t *testing.T) {
	for _, status := range []domain.DocumentStatus{domain.StatusPaid, domain.StatusAnalyzing, domain.StatusAnalyzed, domain.StatusFailed} {
		w := newWorkflow()
		w.seed("doc-1", status, 350)
		if _, err := w.lifecycle.BeginPayment(context.Background(), "doc-1", nil); !domain.IsKind(err, domain.ErrInvalidState) {
			t.Fatalf("status %s: expected ErrInvalidState, got %v", status, err)
		}
	}
}

func TestBeginPaymentRejectsUnknownOptions(t *testing.T) {
	w := newWorkflow()
	w.seed("doc-1", domain.StatusUploaded, 350)
	if _, err := w.lifecycle.BeginPayment(context.Background(), "doc-1", domain.AnalysisOptions{"tarot"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if w.repo.status("doc-1") != domain.StatusUploaded {
		t.Fatalf("document must stay uploaded")
	}
}

func TestBeginPaymentProviderErrorLeavesDocumentUploaded(t *testing.T) {
	w := newWorkflow()
	w.seed("doc-1", domain.StatusUploaded, 350)
	w.payments.createErr = domain.WrapError(domain.ErrProvider, "create payment intent", errors.New("card network down"))

	if _, err := w.lifecycle.BeginPayment(context.Background(), "doc-1", nil); !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if w.repo.status("doc-1") != domain.StatusUploaded {
		t.Fatalf("document must stay uploaded")
	}
}

func TestGetUnknownDocument(t *testing.T) {
	w := newWorkflow()
	if _, err := w.lifecycle.Get(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := w.lifecycle.Get(context.Background(), " "); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound for blank id, got %v", err)
	}
}

func TestListClampsLimit(t *testing.T) {
	w := newWorkflow()
	w.seed("doc-1", domain.StatusUploaded, 350)
	w.seed("doc-2", domain.StatusPaid, 350)

	docs, err := w.lifecycle.List(context.Background(), 0, -3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

func TestOriginalStreamsStoredFile(t *testing.T) {
	w := newWorkflow()
	doc := w.seed("doc-1", domain.StatusUploaded, 350)
	doc.StoragePath = "originals/doc-1.pdf"
	w.storage.objects[doc.StoragePath] = []byte("%PDF-1.7 original")

	got, rc, err := w.lifecycle.Original(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Original() error = %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read original: %v", err)
	}
	if got.ID != "doc-1" || string(body) != "%PDF-1.7 original" {
		t.Fatalf("unexpected original %q for %s", body, got.ID)
	}
}

func TestOriginalMissingObjectIsNotFound(t *testing.T) {
	w := newWorkflow()
	doc := w.seed("doc-1", domain.StatusUploaded, 350)

	if _, _, err := w.lifecycle.Original(context.Background(), "doc-1"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound without a storage path, got %v", err)
	}

	doc.StoragePath = "originals/gone.pdf"
	if _, _, err := w.lifecycle.Original(context.Background(), "doc-1"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound for a deleted object, got %v", err)
	}
	if _, _, err := w.lifecycle.Original(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound for an unknown document, got %v", err)
	}
}
