package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/queue"
	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// memNotifications records written notifications.
type memNotifications struct {
	mu     sync.Mutex
	rows   []*model.Notification
	failed bool
}

func (m *memNotifications) Create(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed {
		return context.DeadlineExceeded
	}
	n.ID = uint64(len(m.rows) + 1)
	m.rows = append(m.rows, n)
	return nil
}

func (m *memNotifications) CreateMany(ctx context.Context, ns []*model.Notification) error {
	for _, n := range ns {
		if err := m.Create(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (m *memNotifications) GetByID(_ context.Context, id uint64) (*model.Notification, error) {
	for _, n := range m.rows {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, repository.ErrNotificationNotFound
}

func (m *memNotifications) ListFor(_ context.Context, to model.Recipient, unreadOnly bool, _ int) ([]*model.Notification, error) {
	out := []*model.Notification{}
	for _, n := range m.rows {
		if n.Recipient() == to && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) UnreadCount(ctx context.Context, to model.Recipient) (int, error) {
	list, _ := m.ListFor(ctx, to, true, 0)
	return len(list), nil
}

func (m *memNotifications) MarkRead(_ context.Context, id uint64) error {
	for _, n := range m.rows {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (m *memNotifications) MarkAllRead(_ context.Context, to model.Recipient) (int64, error) {
	var c int64
	for _, n := range m.rows {
		if n.Recipient() == to && !n.IsRead {
			n.IsRead = true
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) Delete(_ context.Context, id uint64) error {
	for i, n := range m.rows {
		if n.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (m *memNotifications) to(r model.Recipient) []*model.Notification {
	var out []*model.Notification
	for _, n := range m.rows {
		if n.Recipient() == r {
			out = append(out, n)
		}
	}
	return out
}

// memAccounts keeps users, owners and admins in maps.
type memAccounts struct {
	users  map[uint64]*model.User
	owners map[uint64]*model.Owner
	admins map[uint64]*model.Admin
	nextID uint64

	passwordErr error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		users:  map[uint64]*model.User{},
		owners: map[uint64]*model.Owner{},
		admins: map[uint64]*model.Admin{},
		nextID: 100,
	}
}

func (m *memAccounts) emailTaken(email string) bool {
	for _, u := range m.users {
		if u.Email == email {
			return true
		}
	}
	for _, o := range m.owners {
		if o.Email == email {
			return true
		}
	}
	return false
}

func (m *memAccounts) CreateUser(_ context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if m.emailTaken(u.Email) {
		return repository.ErrEmailExists
	}
	m.nextID++
	u.ID = m.nextID
	if u.Wishlist == nil {
		u.Wishlist = []uint64{}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memAccounts) CreateOwner(_ context.Context, o *model.Owner) error {
	o.Email = strings.ToLower(strings.TrimSpace(o.Email))
	if m.emailTaken(o.Email) {
		return repository.ErrEmailExists
	}
	m.nextID++
	o.ID = m.nextID
	m.owners[o.ID] = o
	return nil
}

func (m *memAccounts) GetUser(_ context.Context, id uint64) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memAccounts) GetOwner(_ context.Context, id uint64) (*model.Owner, error) {
	if o, ok := m.owners[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, repository.ErrOwnerNotFound
}

func (m *memAccounts) GetAccount(ctx context.Context, role model.Role, id uint64) (model.Account, error) {
	switch role {
	case model.RoleUser:
		if u, ok := m.users[id]; ok {
			return u, nil
		}
		return nil, repository.ErrUserNotFound
	case model.RoleOwner:
		if o, ok := m.owners[id]; ok {
			return o, nil
		}
		return nil, repository.ErrOwnerNotFound
	}
	if a, ok := m.admins[id]; ok {
		return a, nil
	}
	return nil, repository.ErrAdminNotFound
}

func (m *memAccounts) GetAccountByEmail(_ context.Context, role model.Role, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	switch role {
	case model.RoleUser:
		for _, u := range m.users {
			if u.Email == email {
				return u, nil
			}
		}
		return nil, repository.ErrUserNotFound
	case model.RoleOwner:
		for _, o := range m.owners {
			if o.Email == email {
				return o, nil
			}
		}
		return nil, repository.ErrOwnerNotFound
	}
	for _, a := range m.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, repository.ErrAdminNotFound
}

func (m *memAccounts) UpdateProfile(ctx context.Context, role model.Role, id uint64, p model.ProfileUpdate) (model.Account, error) {
	acc, err := m.GetAccount(ctx, role, id)
	if err != nil {
		return nil, err
	}
	if u, ok := acc.(*model.User); ok {
		if p.Name != nil {
			u.Name = *p.Name
		}
		if p.Address != nil {
			u.Address = *p.Address
		}
	}
	return acc, nil
}

func (m *memAccounts) UpdatePassword(ctx context.Context, role model.Role, id uint64, hash string) error {
	if m.passwordErr != nil {
		return m.passwordErr
	}
	acc, err := m.GetAccount(ctx, role, id)
	if err != nil {
		return err
	}
	switch a := acc.(type) {
	case *model.User:
		a.PasswordHash = hash
	case *model.Owner:
		a.PasswordHash = hash
	case *model.Admin:
		a.PasswordHash = hash
	}
	return nil
}

func (m *memAccounts) SetOwnerApproved(_ context.Context, id uint64, approved bool) error {
	o, ok := m.owners[id]
	if !ok {
		return repository.ErrOwnerNotFound
	}
	o.Approved = approved
	return nil
}

func (m *memAccounts) ListOwners(_ context.Context, approved bool) ([]*model.Owner, error) {
	out := []*model.Owner{}
	for _, o := range m.owners {
		if o.Approved == approved {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memAccounts) ListUsers(context.Context) ([]*model.User, error) {
	out := []*model.User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memAccounts) ListAdminIDs(context.Context) ([]uint64, error) {
	out := []uint64{}
	for id := range m.admins {
		out = append(out, id)
	}
	return out, nil
}

func (m *memAccounts) ToggleWishlist(_ context.Context, userID, productID uint64) ([]uint64, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.Wishlist = model.ToggleWishlist(u.Wishlist, productID)
	return u.Wishlist, nil
}

func (m *memAccounts) Stats(context.Context) (repository.Stats, error) {
	return repository.Stats{Users: int64(len(m.users)), Owners: int64(len(m.owners))}, nil
}

// memRefresh keeps refresh token hashes.
type memRefresh struct {
	tokens map[string]refreshEntry
}

type refreshEntry struct {
	role    model.Role
	id      uint64
	exp     time.Time
	revoked bool
}

func newMemRefresh() *memRefresh { return &memRefresh{tokens: map[string]refreshEntry{}} }

func (m *memRefresh) StoreRefresh(_ context.Context, role model.Role, id uint64, hash string, exp time.Time) error {
	m.tokens[hash] = refreshEntry{role: role, id: id, exp: exp}
	return nil
}

func (m *memRefresh) ValidateRefresh(_ context.Context, hash string) (model.Role, uint64, error) {
	e, ok := m.tokens[hash]
	if !ok || e.revoked || time.Now().After(e.exp) {
		return "", 0, repository.ErrInvalidRefresh
	}
	return e.role, e.id, nil
}

func (m *memRefresh) RevokeByHash(_ context.Context, hash string) error {
	if e, ok := m.tokens[hash]; ok {
		e.revoked = true
		m.tokens[hash] = e
	}
	return nil
}

func (m *memRefresh) RevokeAllFor(_ context.Context, role model.Role, id uint64) error {
	for h, e := range m.tokens {
		if e.role == role && e.id == id {
			e.revoked = true
			m.tokens[h] = e
		}
	}
	return nil
}

// memShops keeps shops in a map.
type memShops struct {
	rows map[uint64]*model.Shop
}

func (m *memShops) Create(_ context.Context, s *model.Shop) error {
	s.ID = uint64(len(m.rows) + 1)
	m.rows[s.ID] = s
	return nil
}

func (m *memShops) GetByID(_ context.Context, id uint64) (*model.Shop, error) {
	if s, ok := m.rows[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, repository.ErrShopNotFound
}

func (m *memShops) List(context.Context) ([]*model.Shop, error) {
	out := []*model.Shop{}
	for _, s := range m.rows {
		out = append(out, s)
	}
	return out, nil
}

func (m *memShops) ListByOwner(_ context.Context, ownerID uint64) ([]*model.Shop, error) {
	out := []*model.Shop{}
	for _, s := range m.rows {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShops) Update(_ context.Context, s *model.Shop) error {
	m.rows[s.ID] = s
	return nil
}

func (m *memShops) Delete(_ context.Context, id uint64) error {
	if _, ok := m.rows[id]; !ok {
		return repository.ErrShopNotFound
	}
	delete(m.rows, id)
	return nil
}

// memProducts keeps products in a map.
type memProducts struct {
	rows map[uint64]*model.Product
}

func (m *memProducts) ListApproved(_ context.Context, q model.ProductQuery) ([]*model.Product, int, error) {
	out := []*model.Product{}
	for _, p := range m.rows {
		if p.Status == model.ProductApproved {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *memProducts) GetApproved(ctx context.Context, id uint64) (*model.Product, error) {
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.ProductApproved {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *memProducts) GetByID(_ context.Context, id uint64) (*model.Product, error) {
	if p, ok := m.rows[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProductNotFound
}

func (m *memProducts) ListByOwner(_ context.Context, ownerID uint64) ([]*model.Product, error) {
	out := []*model.Product{}
	for _, p := range m.rows {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) ListByStatus(_ context.Context, status model.ProductStatus) ([]*model.Product, error) {
	out := []*model.Product{}
	for _, p := range m.rows {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) Create(_ context.Context, p *model.Product) error {
	p.ID = uint64(len(m.rows) + 1)
	p.Status = model.ProductPending
	m.rows[p.ID] = p
	return nil
}

func (m *memProducts) Update(_ context.Context, p *model.Product) error {
	p.Status = model.ProductPending
	m.rows[p.ID] = p
	return nil
}

func (m *memProducts) Delete(_ context.Context, id uint64) error {
	if _, ok := m.rows[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memProducts) SetStatus(_ context.Context, id uint64, status model.ProductStatus) error {
	p, ok := m.rows[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Status = status
	return nil
}

// memOrders places orders against memProducts with the same
// all-or-nothing rules as the MySQL store.
type memOrders struct {
	products *memProducts
	rows     map[uint64]*model.Order
	// completeErr, when set, is returned once by Complete.
	completeErr error
}

func (m *memOrders) Place(_ context.Context, userID uint64, lines []model.OrderLine, addr string) (*model.Order, error) {
	want := map[uint64]int{}
	for _, l := range lines {
		want[l.ProductID] += l.Quantity
	}
	for id, qty := range want {
		p, ok := m.products.rows[id]
		if !ok || p.Status != model.ProductApproved {
			return nil, &repository.MissingProductError{ProductID: id}
		}
		if p.Stock < qty {
			return nil, &repository.InsufficientStockError{ProductID: id, Name: p.Name, Requested: qty, Available: p.Stock}
		}
	}
	o := &model.Order{ID: uint64(len(m.rows) + 1), UserID: userID, Status: model.OrderPending, ShippingAddress: addr}
	for _, l := range lines {
		p := m.products.rows[l.ProductID]
		p.Stock -= l.Quantity
		o.Items = append(o.Items, model.OrderItem{
			ProductID: p.ID, ShopID: p.ShopID, OwnerID: p.OwnerID, ProductName: p.Name, Quantity: l.Quantity, Price: p.Price,
		})
	}
	o.Total = model.ComputeTotal(o.Items)
	m.rows[o.ID] = o
	return o, nil
}

func (m *memOrders) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	if o, ok := m.rows[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (m *memOrders) ListByUser(_ context.Context, userID uint64) ([]*model.Order, error) {
	out := []*model.Order{}
	for _, o := range m.rows {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) ListByOwner(_ context.Context, ownerID uint64) ([]*model.Order, error) {
	out := []*model.Order{}
	for _, o := range m.rows {
		if o.SuppliedBy(ownerID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id uint64, status model.OrderStatus) error {
	o, ok := m.rows[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (m *memOrders) Cancel(_ context.Context, id, userID uint64) (*model.Order, error) {
	o, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if o.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if o.Status != model.OrderPending {
		return nil, repository.ErrConflict
	}
	for _, it := range o.Items {
		m.products.rows[it.ProductID].Stock += it.Quantity
	}
	o.Status = model.OrderCancelled
	cp := *o
	return &cp, nil
}

func (m *memOrders) Complete(_ context.Context, id uint64, receiptID string) error {
	if err := m.completeErr; err != nil {
		m.completeErr = nil
		return err
	}
	o, ok := m.rows[id]
	if !ok || o.Status != model.OrderDelivered || o.ReceiptID != nil {
		return repository.ErrConflict
	}
	o.Status = model.OrderCompleted
	o.ReceiptID = &receiptID
	return nil
}

// memOffers keeps offers in a map.
type memOffers struct {
	rows map[uint64]*model.Offer
}

func (m *memOffers) Create(_ context.Context, o *model.Offer) error {
	o.ID = uint64(len(m.rows) + 1)
	o.Status = model.OfferPending
	m.rows[o.ID] = o
	return nil
}

func (m *memOffers) GetByID(_ context.Context, id uint64) (*model.Offer, error) {
	if o, ok := m.rows[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, repository.ErrOfferNotFound
}

func (m *memOffers) ListByUser(_ context.Context, userID uint64) ([]*model.Offer, error) {
	out := []*model.Offer{}
	for _, o := range m.rows {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOffers) ListByOwner(_ context.Context, ownerID uint64) ([]*model.Offer, error) {
	out := []*model.Offer{}
	for _, o := range m.rows {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOffers) UpdateStatus(_ context.Context, id uint64, status model.OfferStatus) error {
	o, ok := m.rows[id]
	if !ok {
		return repository.ErrOfferNotFound
	}
	o.Status = status
	return nil
}

// memChats keeps chats and messages.
type memChats struct {
	chats    map[uint64]*model.Chat
	messages []*model.Message
}

func (m *memChats) GetOrCreate(_ context.Context, orderID, userID, ownerID uint64) (*model.Chat, error) {
	for _, c := range m.chats {
		if c.OrderID == orderID && c.OwnerID == ownerID {
			return c, nil
		}
	}
	c := &model.Chat{ID: uint64(len(m.chats) + 1), OrderID: orderID, UserID: userID, OwnerID: ownerID}
	m.chats[c.ID] = c
	return c, nil
}

func (m *memChats) GetByID(_ context.Context, id uint64) (*model.Chat, error) {
	if c, ok := m.chats[id]; ok {
		return c, nil
	}
	return nil, repository.ErrChatNotFound
}

func (m *memChats) ListFor(_ context.Context, role model.Role, id uint64) ([]*model.Chat, error) {
	out := []*model.Chat{}
	for _, c := range m.chats {
		if c.Participant(role, id) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memChats) AddMessage(_ context.Context, msg *model.Message) error {
	msg.ID = uint64(len(m.messages) + 1)
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memChats) ListMessages(_ context.Context, chatID uint64) ([]*model.Message, error) {
	out := []*model.Message{}
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memChats) MarkRead(_ context.Context, chatID uint64, reader model.Role) (int64, error) {
	var n int64
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.SenderRole != reader && !msg.IsRead {
			msg.IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *memChats) UnreadCount(_ context.Context, role model.Role, id uint64) (int, error) {
	n := 0
	for _, msg := range m.messages {
		c := m.chats[msg.ChatID]
		if c.Participant(role, id) && msg.SenderRole != role && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

// memEvents captures published events.
type memEvents struct {
	events []queue.OrderEvent
}

func (m *memEvents) Publish(_ context.Context, ev queue.OrderEvent) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memEvents) types() []string {
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

// memMailer records reset mails.
type memMailer struct {
	sent []resetMail
}

type resetMail struct {
	to      string
	token   string
	expires time.Time
}

func (m *memMailer) SendPasswordReset(_ context.Context, to, token string, expires time.Time) error {
	m.sent = append(m.sent, resetMail{to: to, token: token, expires: expires})
	return nil
}
