package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory Store with hooks for failure injection.
type fakeStore struct {
	mu sync.Mutex

	nextPaymentID int64
	payments      map[int64]Payment
	saves         []Payment
	saveOpts      []SaveOptions
	meta          map[int64]map[string]string

	nextItemID  int64
	items       map[string]CatalogItem
	createCalls int
	findCalls   int

	customers map[int64]bool
	userIDs   map[int64]bool
	emails    map[string]int64
	logins    map[string]int64

	// failSave returns an error for saves it rejects.
	failSave func(p *Payment) error
	// failCreate fails catalog creation of a title.
	failCreate map[string]error
	// raceCreate simulates another writer creating the title first.
	raceCreate map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:   make(map[int64]Payment),
		meta:       make(map[int64]map[string]string),
		items:      make(map[string]CatalogItem),
		customers:  make(map[int64]bool),
		userIDs:    make(map[int64]bool),
		emails:     make(map[string]int64),
		logins:     make(map[string]int64),
		failCreate: make(map[string]error),
		raceCreate: make(map[string]bool),
	}
}

func (f *fakeStore) SavePayment(_ context.Context, p *Payment, opts SaveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSave != nil {
		if err := f.failSave(p); err != nil {
			return err
		}
	}
	if p.ID == 0 {
		f.nextPaymentID++
		p.ID = f.nextPaymentID
	}
	cp := *p
	cp.LineItems = append([]LineItem(nil), p.LineItems...)
	f.payments[p.ID] = cp
	f.saves = append(f.saves, cp)
	f.saveOpts = append(f.saveOpts, opts)
	return nil
}

func (f *fakeStore) GetPayment(_ context.Context, id int64) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

func (f *fakeStore) AddMeta(_ context.Context, id int64, key, value string, unique bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == "" || id <= 0 {
		return false, nil
	}
	m := f.meta[id]
	if m == nil {
		m = make(map[string]string)
		f.meta[id] = m
	}
	if _, exists := m[key]; exists && unique {
		return false, nil
	}
	m[key] = value
	return true, nil
}

func (f *fakeStore) UpdateMeta(ctx context.Context, id int64, key, value string) (bool, error) {
	return f.AddMeta(ctx, id, key, value, false)
}

func (f *fakeStore) GetMeta(_ context.Context, id int64, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.meta[id][key]
	return v, ok, nil
}

func (f *fakeStore) DeleteMeta(_ context.Context, id int64, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.meta[id][key]; !ok {
		return false, nil
	}
	delete(f.meta[id], key)
	return true, nil
}

func (f *fakeStore) FindByTitle(_ context.Context, title string) (CatalogItem, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	item, ok := f.items[title]
	return item, ok, nil
}

func (f *fakeStore) CreateItem(_ context.Context, title string, authorID int64) (CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if err, ok := f.failCreate[title]; ok {
		return CatalogItem{}, err
	}
	if f.raceCreate[title] {
		f.nextItemID++
		f.items[title] = CatalogItem{ID: f.nextItemID, Title: title, AuthorID: 999}
		return CatalogItem{}, fmt.Errorf("insert %q: %w", title, ErrDuplicateTitle)
	}
	if _, exists := f.items[title]; exists {
		return CatalogItem{}, fmt.Errorf("insert %q: %w", title, ErrDuplicateTitle)
	}
	f.nextItemID++
	item := CatalogItem{ID: f.nextItemID, Title: title, Price: decimal.Zero, AuthorID: authorID}
	f.items[title] = item
	return item, nil
}

// addItem seeds a catalog entry.
func (f *fakeStore) addItem(title string, price string) CatalogItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextItemID++
	item := CatalogItem{ID: f.nextItemID, Title: title, Price: decimal.RequireFromString(price)}
	f.items[title] = item
	return item
}

func (f *fakeStore) CustomerExists(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[id], nil
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return id, f.userIDs[id], nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.emails[email]
	return id, ok, nil
}

func (f *fakeStore) UserByLogin(_ context.Context, login string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.logins[login]
	return id, ok, nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// fakeJobStore keeps copies of saved jobs.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]Job)}
}

func (f *fakeJobStore) SaveJob(_ context.Context, j *Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *j
	cp.Issues = append([]RowIssue(nil), j.Issues...)
	f.jobs[j.ID] = cp
	return nil
}

func (f *fakeJobStore) GetJob(_ context.Context, id string) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	return &j, nil
}

func (f *fakeJobStore) ListJobs(_ context.Context) ([]*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		j := j
		out = append(out, &j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

// fakeTemplateStore keeps templates by ID.
type fakeTemplateStore struct {
	mu        sync.Mutex
	templates map[string]MappingTemplate
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{templates: make(map[string]MappingTemplate)}
}

func (f *fakeTemplateStore) SaveTemplate(_ context.Context, t *MappingTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[t.ID] = *t
	return nil
}

func (f *fakeTemplateStore) GetTemplate(_ context.Context, id string) (*MappingTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}

func (f *fakeTemplateStore) ListTemplates(_ context.Context) ([]MappingTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]MappingTemplate, 0, len(f.templates))
	for _, t := range f.templates {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTemplateStore) DeleteTemplate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(f.templates, id)
	return nil
}

// fakeAuditStore records entries in append order.
type fakeAuditStore struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (f *fakeAuditStore) AppendAudit(_ context.Context, e *AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeAuditStore) ListAudit(_ context.Context, filter AuditFilter) ([]AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AuditEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if filter.JobID != "" && e.JobID != filter.JobID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeAuditStore) actions() []AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AuditAction, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Action
	}
	return out
}

// numberedRows returns n rows with a "Number" column holding the zero-based index.
func numberedRows(n int) []RawRow {
	rows := make([]RawRow, n)
	for i := range rows {
		rows[i] = RawRow{"Number": fmt.Sprintf("%d", i)}
	}
	return rows
}
