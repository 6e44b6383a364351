// Package memstore is an in-memory implementation of every store the import
// service consumes. It backs DB_DRIVER=memory, dry runs and tests.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/payimport/internal/core"
	"github.com/JonMunkholm/payimport/internal/store"
)

// User is a directory entry resolvable by ID, e-mail or login.
type User struct {
	ID    int64
	Email string
	Login string
}

// Store keeps payments, catalog, directory, jobs, templates and audit
// entries in memory. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	clock core.Clock

	nextPaymentID int64
	payments      map[int64]core.Payment
	meta          map[int64]map[string]string

	nextItemID int64
	items      map[string]core.CatalogItem // title -> item
	stats      map[int64]store.ProductStats

	customers map[int64]bool
	users     map[int64]User

	notifications []store.Notification

	jobs      map[string]core.Job
	templates map[string]core.MappingTemplate
	audit     []core.AuditEntry
}

var (
	_ core.Store         = (*Store)(nil)
	_ core.JobStore      = (*Store)(nil)
	_ core.TemplateStore = (*Store)(nil)
	_ core.AuditStore    = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		clock:     time.Now,
		payments:  make(map[int64]core.Payment),
		meta:      make(map[int64]map[string]string),
		items:     make(map[string]core.CatalogItem),
		stats:     make(map[int64]store.ProductStats),
		customers: make(map[int64]bool),
		users:     make(map[int64]User),
		jobs:      make(map[string]core.Job),
		templates: make(map[string]core.MappingTemplate),
	}
}

// ============================================================================
// Payments
// ============================================================================

// SavePayment inserts a payment when p.ID is zero, otherwise replaces it.
// Entering a completed status adds product stats and, unless suppressed,
// queues the sale notifications.
func (s *Store) SavePayment(ctx context.Context, p *core.Payment, opts core.SaveOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev string
	if p.ID == 0 {
		s.nextPaymentID++
		p.ID = s.nextPaymentID
	} else {
		old, ok := s.payments[p.ID]
		if !ok {
			return fmt.Errorf("update payment %d: %w", p.ID, core.ErrPaymentNotFound)
		}
		prev = old.Status
	}
	s.payments[p.ID] = clonePayment(p)

	if store.EntersCompleted(prev, p.Status) {
		for _, inc := range store.SaleIncrements(p) {
			st := s.stats[inc.ProductID]
			st.ProductID = inc.ProductID
			st.Sales += inc.Sales
			st.Earnings = st.Earnings.Add(inc.Earnings)
			s.stats[inc.ProductID] = st
		}
		if !opts.SuppressSideEffects {
			s.notifications = append(s.notifications, store.SaleNotifications(p, s.clock())...)
		}
	}
	return nil
}

// GetPayment returns a copy of a stored payment.
func (s *Store) GetPayment(_ context.Context, id int64) (*core.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %d: %w", id, core.ErrPaymentNotFound)
	}
	cp := clonePayment(&p)
	return &cp, nil
}

// Payments returns how many payments are stored.
func (s *Store) Payments() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments)
}

func clonePayment(p *core.Payment) core.Payment {
	cp := *p
	cp.LineItems = append([]core.LineItem(nil), p.LineItems...)
	return cp
}

// ----------------------------------------------------------------------------
// Meta
// ----------------------------------------------------------------------------

// AddMeta adds key to a payment. It reports false for an empty key, an
// invalid payment ID, or a unique add of an existing key.
func (s *Store) AddMeta(_ context.Context, paymentID int64, key, value string, unique bool) (bool, error) {
	if key == "" || paymentID <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.meta[paymentID]
	if m == nil {
		m = make(map[string]string)
		s.meta[paymentID] = m
	}
	if _, exists := m[key]; exists && unique {
		return false, nil
	}
	m[key] = value
	return true, nil
}

// UpdateMeta sets key, adding it when missing.
func (s *Store) UpdateMeta(ctx context.Context, paymentID int64, key, value string) (bool, error) {
	return s.AddMeta(ctx, paymentID, key, value, false)
}

// GetMeta returns the value of key.
func (s *Store) GetMeta(_ context.Context, paymentID int64, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.meta[paymentID][key]
	return v, ok, nil
}

// DeleteMeta removes key. It reports false when the key is empty or missing.
func (s *Store) DeleteMeta(_ context.Context, paymentID int64, key string) (bool, error) {
	if key == "" || paymentID <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meta[paymentID][key]; !ok {
		return false, nil
	}
	delete(s.meta[paymentID], key)
	return true, nil
}

// ============================================================================
// Catalog
// ============================================================================

// FindByTitle looks a catalog item up by exact title.
func (s *Store) FindByTitle(_ context.Context, title string) (core.CatalogItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[title]
	return item, ok, nil
}

// CreateItem creates a free catalog item. A taken title returns an error
// wrapping core.ErrDuplicateTitle.
func (s *Store) CreateItem(_ context.Context, title string, authorID int64) (core.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[title]; exists {
		return core.CatalogItem{}, fmt.Errorf("create catalog item %q: %w", title, core.ErrDuplicateTitle)
	}
	return s.addItemLocked(title, decimal.Zero, authorID), nil
}

// AddItem seeds a catalog item with a price.
func (s *Store) AddItem(title string, price decimal.Decimal) core.CatalogItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addItemLocked(title, price, 0)
}

func (s *Store) addItemLocked(title string, price decimal.Decimal, authorID int64) core.CatalogItem {
	s.nextItemID++
	item := core.CatalogItem{ID: s.nextItemID, Title: title, Price: price, AuthorID: authorID}
	s.items[title] = item
	return item
}

// Items returns how many catalog items exist.
func (s *Store) Items() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Stats returns the sales counters of a product.
func (s *Store) Stats(productID int64) store.ProductStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[productID]
	if !ok {
		return store.ProductStats{ProductID: productID, Earnings: decimal.Zero}
	}
	return st
}

// Notifications returns the queued notifications in queue order.
func (s *Store) Notifications() []store.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.Notification(nil), s.notifications...)
}

// ============================================================================
// Directory
// ============================================================================

// AddCustomer registers a customer ID.
func (s *Store) AddCustomer(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[id] = true
}

// AddUser registers a user.
func (s *Store) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// CustomerExists reports whether id is a registered customer.
func (s *Store) CustomerExists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customers[id], nil
}

// UserByID reports whether id is a registered user.
func (s *Store) UserByID(_ context.Context, id int64) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return id, ok, nil
}

// UserByEmail finds a user by e-mail address, ignoring case.
func (s *Store) UserByEmail(_ context.Context, email string) (int64, bool, error) {
	return s.findUser(func(u User) bool { return strings.EqualFold(u.Email, email) })
}

// UserByLogin finds a user by exact login name.
func (s *Store) UserByLogin(_ context.Context, login string) (int64, bool, error) {
	return s.findUser(func(u User) bool { return u.Login == login })
}

func (s *Store) findUser(match func(User) bool) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		found int64
		ok    bool
	)
	for id, u := range s.users {
		// Lowest ID wins so lookups are deterministic.
		if match(u) && (!ok || id < found) {
			found, ok = id, true
		}
	}
	return found, ok, nil
}
