package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/ids"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/repository"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// memDB is an in-memory stand-in for the relational store. Transactions are
// serialized by mu and roll back by restoring a snapshot.
type memDB struct {
	mu         sync.Mutex
	products   map[string]*models.Product
	categories map[string]*models.Category
	orders     map[string]*models.Order

	failOrderCreate error
	// afterOrderRead runs once, outside the lock, after the next order read.
	afterOrderRead func()
}

func newMemDB() *memDB {
	return &memDB{
		products:   make(map[string]*models.Product),
		categories: make(map[string]*models.Category),
		orders:     make(map[string]*models.Order),
	}
}

func (d *memDB) addProduct(id, name string, price string, stock int) {
	d.products[id] = &models.Product{
		ID:        id,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func (d *memDB) stock(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.products[id].Stock
}

func (d *memDB) orderCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.orders)
}

func (d *memDB) Products() *memProducts     { return &memProducts{db: d} }
func (d *memDB) Orders() *memOrders         { return &memOrders{db: d} }
func (d *memDB) Categories() *memCategories { return &memCategories{db: d} }

func (d *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	products := make(map[string]models.Product, len(d.products))
	for id, p := range d.products {
		products[id] = *p
	}
	orders := make(map[string]*models.Order, len(d.orders))
	for id, o := range d.orders {
		orders[id] = o
	}

	err := fn(ctx, repository.Tx{
		Products: &memProducts{db: d, inTx: true},
		Orders:   &memOrders{db: d, inTx: true},
	})
	if err != nil {
		d.products = make(map[string]*models.Product, len(products))
		for id, p := range products {
			p := p
			d.products[id] = &p
		}
		d.orders = orders
	}
	return err
}

func (d *memDB) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	d.mu.Lock()
	return d.mu.Unlock
}

type memProducts struct {
	db   *memDB
	inTx bool
}

func (r *memProducts) Create(_ context.Context, p *models.Product) error {
	defer r.db.lock(r.inTx)()
	cp := *p
	r.db.products[p.ID] = &cp
	return nil
}

func (r *memProducts) GetByID(_ context.Context, id string) (*models.Product, error) {
	defer r.db.lock(r.inTx)()
	p, ok := r.db.products[id]
	if !ok {
		return nil, apperr.NotFound("product")
	}
	cp := *p
	return &cp, nil
}

func (r *memProducts) GetForUpdate(ctx context.Context, id string) (*models.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *memProducts) List(_ context.Context, filter models.ProductFilter) ([]*models.Product, int, error) {
	defer r.db.lock(r.inTx)()
	var all []*models.Product
	for _, p := range r.db.products {
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)
	return all[start:end], total, nil
}

func (r *memProducts) Update(_ context.Context, p *models.Product) error {
	defer r.db.lock(r.inTx)()
	if _, ok := r.db.products[p.ID]; !ok {
		return apperr.NotFound("product")
	}
	cp := *p
	r.db.products[p.ID] = &cp
	return nil
}

func (r *memProducts) Delete(_ context.Context, id string) error {
	defer r.db.lock(r.inTx)()
	if _, ok := r.db.products[id]; !ok {
		return apperr.NotFound("product")
	}
	delete(r.db.products, id)
	return nil
}

func (r *memProducts) DecrementStock(_ context.Context, id string, qty int) error {
	defer r.db.lock(r.inTx)()
	p, ok := r.db.products[id]
	if !ok || p.Stock < qty {
		return apperr.New(apperr.KindOutOfStock, "insufficient stock")
	}
	p.Stock -= qty
	return nil
}

func (r *memProducts) IncrementStock(_ context.Context, id string, qty int) error {
	defer r.db.lock(r.inTx)()
	p, ok := r.db.products[id]
	if !ok {
		return apperr.NotFound("product")
	}
	p.Stock += qty
	return nil
}

type memOrders struct {
	db   *memDB
	inTx bool
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Lines = append([]models.OrderLine(nil), o.Lines...)
	return &cp
}

func (r *memOrders) Create(_ context.Context, o *models.Order) error {
	defer r.db.lock(r.inTx)()
	if r.db.failOrderCreate != nil {
		return r.db.failOrderCreate
	}
	r.db.orders[o.ID] = copyOrder(o)
	return nil
}

func (r *memOrders) GetByID(_ context.Context, id string) (*models.Order, error) {
	order, err := r.getByID(id)
	if err == nil && !r.inTx {
		if hook := r.db.takeOrderReadHook(); hook != nil {
			hook()
		}
	}
	return order, err
}

func (r *memOrders) getByID(id string) (*models.Order, error) {
	defer r.db.lock(r.inTx)()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	return copyOrder(o), nil
}

func (d *memDB) takeOrderReadHook() func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	hook := d.afterOrderRead
	d.afterOrderRead = nil
	return hook
}

func (r *memOrders) List(_ context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	defer r.db.lock(r.inTx)()
	var matched []*models.Order
	for _, o := range r.db.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		matched = append(matched, copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

func (r *memOrders) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus, at time.Time) error {
	defer r.db.lock(r.inTx)()
	o, ok := r.db.orders[id]
	if !ok {
		return apperr.NotFound("order")
	}
	if o.Status != from {
		return apperr.InvalidTransition(string(o.Status), string(to))
	}
	updated := copyOrder(o)
	updated.Status = to
	updated.UpdatedAt = at
	r.db.orders[id] = updated
	return nil
}

func (r *memOrders) Delete(_ context.Context, id string) error {
	defer r.db.lock(r.inTx)()
	if _, ok := r.db.orders[id]; !ok {
		return apperr.NotFound("order")
	}
	delete(r.db.orders, id)
	return nil
}

type memCategories struct {
	db *memDB
}

func (r *memCategories) Create(_ context.Context, c *models.Category) error {
	defer r.db.lock(false)()
	for _, existing := range r.db.categories {
		if existing.Name == c.Name {
			return apperr.InvalidInput("name", "category already exists")
		}
	}
	cp := *c
	r.db.categories[c.ID] = &cp
	return nil
}

func (r *memCategories) GetByID(_ context.Context, id string) (*models.Category, error) {
	defer r.db.lock(false)()
	c, ok := r.db.categories[id]
	if !ok {
		return nil, apperr.NotFound("category")
	}
	cp := *c
	return &cp, nil
}

func (r *memCategories) List(_ context.Context) ([]*models.Category, error) {
	defer r.db.lock(false)()
	out := make([]*models.Category, 0, len(r.db.categories))
	for _, c := range r.db.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memCategories) Update(_ context.Context, c *models.Category) error {
	defer r.db.lock(false)()
	if _, ok := r.db.categories[c.ID]; !ok {
		return apperr.NotFound("category")
	}
	cp := *c
	r.db.categories[c.ID] = &cp
	return nil
}

func (r *memCategories) Delete(_ context.Context, id string) error {
	defer r.db.lock(false)()
	if _, ok := r.db.categories[id]; !ok {
		return apperr.NotFound("category")
	}
	delete(r.db.categories, id)
	for _, p := range r.db.products {
		if p.CategoryID == id {
			p.CategoryID = ""
		}
	}
	return nil
}

type memCarts struct {
	mu       sync.Mutex
	carts    map[string]*models.Cart
	failSave error
}

func newMemCarts() *memCarts {
	return &memCarts{carts: make(map[string]*models.Cart)}
}

func (s *memCarts) put(userID string, lines ...models.CartLine) {
	s.carts[userID] = &models.Cart{UserID: userID, Lines: lines}
}

func (s *memCarts) Get(_ context.Context, userID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Lines = append([]models.CartLine(nil), c.Lines...)
	return &cp, nil
}

func (s *memCarts) Save(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	cp := *cart
	cp.Lines = append([]models.CartLine(nil), cart.Lines...)
	s.carts[cart.UserID] = &cp
	return nil
}

func (s *memCarts) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

type memReviews struct {
	mu      sync.Mutex
	reviews []models.Review
}

func (s *memReviews) ListByProduct(_ context.Context, productID string) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Review, 0)
	for _, r := range s.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memReviews) Insert(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.ProductID == r.ProductID && existing.UserID == r.UserID {
			return apperr.ErrDuplicateReview
		}
	}
	s.reviews = append(s.reviews, *r)
	return nil
}

func (s *memReviews) Update(_ context.Context, productID, userID string, in models.ReviewInput, at time.Time) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reviews {
		r := &s.reviews[i]
		if r.ProductID == productID && r.UserID == userID {
			r.Rating = in.Rating
			r.Comment = in.Comment
			r.UpdatedAt = at
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.ErrReviewNotFound
}

func (s *memReviews) Delete(_ context.Context, productID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.reviews {
		if r.ProductID == productID && r.UserID == userID {
			s.reviews = append(s.reviews[:i], s.reviews[i+1:]...)
			return nil
		}
	}
	return apperr.ErrReviewNotFound
}

func (s *memReviews) DeleteByProduct(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.reviews[:0]
	for _, r := range s.reviews {
		if r.ProductID != productID {
			kept = append(kept, r)
		}
	}
	s.reviews = kept
	return nil
}

type memCache struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newMemCache() *memCache {
	return &memCache{orders: make(map[string]*models.Order)}
}

func (c *memCache) Get(_ context.Context, id string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.orders[id]; ok {
		return copyOrder(o), nil
	}
	return nil, nil
}

func (c *memCache) Set(_ context.Context, o *models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.orders[o.ID]; ok && cached.Status.Stage() > o.Status.Stage() {
		return nil
	}
	c.orders[o.ID] = copyOrder(o)
	return nil
}

func (c *memCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, id)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, msg *models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

// recipients returns who received notifications of type typ.
func (n *fakeNotifier) recipients(typ models.NotificationType) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		if m.Type == typ {
			out = append(out, m.Recipient)
		}
	}
	return out
}

func (n *fakeNotifier) body(typ models.NotificationType) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.sent {
		if m.Type == typ {
			return m.Body
		}
	}
	return ""
}

func (n *fakeNotifier) types() []models.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.NotificationType, len(n.sent))
	for i, m := range n.sent {
		out[i] = m.Type
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *fakePublisher) record(event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) PublishOrderCreated(_ context.Context, o *models.Order) error {
	return p.record("created:" + o.ID)
}

func (p *fakePublisher) PublishOrderStatusChanged(_ context.Context, o *models.Order, _ models.OrderStatus) error {
	return p.record(string(o.Status) + ":" + o.ID)
}

func (p *fakePublisher) PublishOrderCancelled(_ context.Context, o *models.Order, _ models.OrderStatus) error {
	return p.record("cancelled:" + o.ID)
}

// orderFixture wires an OrderService to in-memory collaborators.
type orderFixture struct {
	db        *memDB
	carts     *memCarts
	cache     *memCache
	notifier  *fakeNotifier
	publisher *fakePublisher
	service   *OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		db:        newMemDB(),
		carts:     newMemCarts(),
		cache:     newMemCache(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}

	cfg := &config.Config{
		Notification: config.NotificationConfig{AdminEmail: "admin@example.com"},
		Features: config.FeatureFlags{
			EnableOrderEvents:  true,
			EnableOrderCaching: true,
		},
	}

	f.service = NewOrderService(
		f.db,
		f.db.Orders(),
		f.carts,
		f.cache,
		f.notifier,
		f.publisher,
		clock.Fixed{At: testNow},
		&ids.Sequence{},
		cfg,
	)
	return f
}
