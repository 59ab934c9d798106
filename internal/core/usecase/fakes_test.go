package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

type memRepo struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	changed     map[string]time.Time
	transitions []string
	getErr      error
	createErr   error
}

func newMemRepo(docs ...*domain.Document) *memRepo {
	r := &memRepo{docs: map[string]*domain.Document{}, changed: map[string]time.Time{}}
	for _, doc := range docs {
		r.docs[doc.ID] = doc
		r.changed[doc.ID] = time.Now()
	}
	return r
}

func (r *memRepo) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copyDoc := *doc
	r.docs[doc.ID] = &copyDoc
	r.changed[doc.ID] = time.Now()
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("document %s", id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Document{}
	for _, doc := range r.docs {
		out = append(out, *doc)
	}
	if offset >= len(out) {
		return []domain.Document{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) Transition(_ context.Context, id string, from, to domain.DocumentStatus, errMessage string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.Status != from {
		return false, nil
	}
	doc.Status = to
	doc.Error = errMessage
	r.changed[id] = time.Now()
	r.transitions = append(r.transitions, fmt.Sprintf("%s->%s", from, to))
	return true, nil
}

func (r *memRepo) BeginPayment(_ context.Context, id, intentID string, options domain.AnalysisOptions) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.Status != domain.StatusUploaded {
		return false, nil
	}
	doc.Status = domain.StatusPaymentPending
	doc.PaymentIntentID = intentID
	doc.Options = options
	r.transitions = append(r.transitions, "uploaded->payment_pending")
	return true, nil
}

func (r *memRepo) CompleteAnalysis(_ context.Context, id string, result *domain.AnalysisResult) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.Status != domain.StatusAnalyzing {
		return false, nil
	}
	doc.Status = domain.StatusAnalyzed
	doc.Result = result
	r.transitions = append(r.transitions, "analyzing->analyzed")
	return true, nil
}

func (r *memRepo) ListStale(_ context.Context, status domain.DocumentStatus, before time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []string{}
	for id, doc := range r.docs {
		if doc.Status == status && r.changed[id].Before(before) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memRepo) status(id string) domain.DocumentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id].Status
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

func newMemStorage() *memStorage { return &memStorage{objects: map[string][]byte{}} }

func (s *memStorage) Save(_ context.Context, key string, data io.Reader) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open object", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type paymentsFake struct {
	mu        sync.Mutex
	intents   map[string]*domain.PaymentIntent
	byKey     map[string]string
	created   int
	createErr error
}

func newPaymentsFake() *paymentsFake {
	return &paymentsFake{intents: map[string]*domain.PaymentIntent{}, byKey: map[string]string{}}
}

func (p *paymentsFake) CreatePaymentIntent(_ context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	if id, ok := p.byKey[req.IdempotencyKey]; ok {
		copyIntent := *p.intents[id]
		return &copyIntent, nil
	}
	p.created++
	intent := &domain.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", p.created),
		DocumentID:   req.DocumentID,
		ClientSecret: fmt.Sprintf("pi_%d_secret", p.created),
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       domain.PaymentPending,
	}
	p.intents[intent.ID] = intent
	p.byKey[req.IdempotencyKey] = intent.ID
	copyIntent := *intent
	return &copyIntent, nil
}

func (p *paymentsFake) GetPaymentIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	intent, ok := p.intents[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrProvider, "get payment intent", errors.New("no such intent"))
	}
	copyIntent := *intent
	return &copyIntent, nil
}

func (p *paymentsFake) PublishableKey() string { return "pk_test_fake" }

func (p *paymentsFake) settle(id string, status domain.PaymentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[id].Status = status
}

type analyzerFake struct {
	calls   atomic.Int32
	result  *domain.AnalysisResult
	err     error
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (a *analyzerFake) Analyze(ctx context.Context, _ string, options domain.AnalysisOptions) (*domain.AnalysisResult, error) {
	a.calls.Add(1)
	if a.started != nil {
		a.once.Do(func() { close(a.started) })
	}
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	if a.result != nil {
		return a.result, nil
	}
	sections := map[domain.AnalysisKind]domain.SectionValue{}
	for _, kind := range options {
		if kind.Scored() {
			v := 72.0
			sections[kind] = domain.SectionValue{Score: &v}
			continue
		}
		sections[kind] = domain.SectionValue{Text: string(kind) + " text"}
	}
	return &domain.AnalysisResult{Sections: sections, Model: "fake"}, nil
}

type cacheFake struct {
	mu      sync.Mutex
	entries map[string]*domain.AnalysisResult
	gets    int
	getErr  error
}

func newCacheFake() *cacheFake { return &cacheFake{entries: map[string]*domain.AnalysisResult{}} }

func (c *cacheFake) Get(_ context.Context, id string) (*domain.AnalysisResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	result, ok := c.entries[id]
	return result, ok, nil
}

func (c *cacheFake) Set(_ context.Context, id string, result *domain.AnalysisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = result
	return nil
}

type queueFake struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (q *queueFake) PublishDocumentPaid(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, id)
	return nil
}

func (q *queueFake) SubscribeDocumentPaid(context.Context, func(context.Context, domain.DocumentPaid) error) error {
	return nil
}

type guardFake struct {
	seen     map[string]bool
	released []string
	err      error
}

func (g *guardFake) CheckAndMark(_ context.Context, id string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[id] {
		return false, nil
	}
	g.seen[id] = true
	return true, nil
}

func (g *guardFake) Release(_ context.Context, id string) error {
	delete(g.seen, id)
	g.released = append(g.released, id)
	return nil
}

type verifierFake struct {
	event *domain.PaymentEvent
	err   error
}

func (v *verifierFake) ParseEvent([]byte, string) (*domain.PaymentEvent, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.event, nil
}

type observerFake struct {
	mu       sync.Mutex
	payments []string
	analyses []string
	hits     int
	misses   int
	uploads  int
}

func (o *observerFake) DocumentUploaded(int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uploads++
}

func (o *observerFake) PaymentConfirmed(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.payments = append(o.payments, outcome)
}

func (o *observerFake) AnalysisFinished(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.analyses = append(o.analyses, outcome)
}

func (o *observerFake) ResultCacheLookup(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
		return
	}
	o.misses++
}

type detectorFake struct{ mime string }

func (d detectorFake) Detect([]byte) string { return d.mime }

type extractorFake struct {
	text string
	err  error
}

func (e *extractorFake) Extract(context.Context, string, []byte) (string, error) {
	return e.text, e.err
}

type rendererFake struct {
	rendered string
}

func (r *rendererFake) Render(doc *domain.Document) ([]byte, error) {
	r.rendered = doc.ID
	return []byte("xlsx"), nil
}

// workflow wires every use case against the in-memory fakes.
type workflow struct {
	repo      *memRepo
	storage   *memStorage
	payments  *paymentsFake
	analyzer  *analyzerFake
	cache     *cacheFake
	queue     *queueFake
	guard     *guardFake
	verifier  *verifierFake
	observer  *observerFake
	lifecycle *LifecycleUseCase
	gate      *PaymentGateUseCase
	analysis  *AnalysisUseCase
}

func newWorkflow() *workflow {
	w := &workflow{
		repo:     newMemRepo(),
		storage:  newMemStorage(),
		payments: newPaymentsFake(),
		analyzer: &analyzerFake{},
		cache:    newCacheFake(),
		queue:    &queueFake{},
		guard:    &guardFake{},
		verifier: &verifierFake{},
		observer: &observerFake{},
	}
	w.lifecycle = NewLifecycleUseCase(w.repo, w.payments, w.storage, domain.DefaultPricingSchedule(), "CNY", w.observer)
	w.gate = NewPaymentGateUseCase(w.repo, w.payments, w.verifier, w.guard, w.queue, w.observer, nil)
	w.analysis = NewAnalysisUseCase(w.repo, w.storage, w.analyzer, w.cache, w.observer, nil, time.Second)
	return w
}

// seed stores a document in the given status with its extracted text.
func (w *workflow) seed(id string, status domain.DocumentStatus, cost int64) *domain.Document {
	textKey := "texts/" + id + ".txt"
	w.storage.objects[textKey] = []byte("Once upon a time.")
	doc := &domain.Document{
		ID:        id,
		Title:     "Story",
		MimeType:  domain.MimeTypePDF,
		FileSize:  1024,
		CharCount: 3000,
		Cost:      cost,
		Currency:  "cny",
		Status:    status,
		TextPath:  textKey,
	}
	if status != domain.StatusUploaded {
		doc.PaymentIntentID = "pi_" + id
	}
	w.repo.docs[id] = doc
	w.repo.changed[id] = time.Now()
	return doc
}
