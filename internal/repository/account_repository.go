package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// AccountRepo persists the three account kinds.  Each kind lives in its
// own table (users, owners, admins); the role selects the table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const (
	userCols  = "id,email,password_hash,name,phone,address,wishlist,created_at,updated_at"
	ownerCols = "id,email,password_hash,name,phone,business_name,approved,created_at,updated_at"
	adminCols = "id,email,password_hash,name,created_at,updated_at"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u  model.User
		wl []byte
	)
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Address, &wl, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	list, err := decodeWishlist(wl)
	if err != nil {
		return nil, err
	}
	u.Wishlist = list
	return &u, nil
}

func scanOwner(s rowScanner) (*model.Owner, error) {
	var o model.Owner
	if err := s.Scan(&o.ID, &o.Email, &o.PasswordHash, &o.Name, &o.Phone, &o.BusinessName, &o.Approved, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanAdmin(s rowScanner) (*model.Admin, error) {
	var a model.Admin
	if err := s.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func decodeWishlist(raw []byte) ([]uint64, error) {
	list := []uint64{}
	if len(raw) == 0 {
		return list, nil
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode wishlist: %w", err)
	}
	return list, nil
}

func encodeWishlist(list []uint64) ([]byte, error) {
	if list == nil {
		list = []uint64{}
	}
	return json.Marshal(list)
}

// CreateUser inserts a user and populates ID and timestamps.
func (r *AccountRepo) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, name, phone, address, wishlist) VALUES (?,?,?,?,?,?)",
		u.Email, u.PasswordHash, u.Name, u.Phone, u.Address, "[]")
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetUser(ctx, uint64(id))
	if err != nil {
		return err
	}
	*u = *fresh
	return nil
}

// CreateOwner inserts an unapproved owner.
func (r *AccountRepo) CreateOwner(ctx context.Context, o *model.Owner) error {
	o.Email = normalizeEmail(o.Email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO owners (email, password_hash, name, phone, business_name, approved) VALUES (?,?,?,?,?,0)",
		o.Email, o.PasswordHash, o.Name, o.Phone, o.BusinessName)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetOwner(ctx, uint64(id))
	if err != nil {
		return err
	}
	*o = *fresh
	return nil
}

// CreateAdmin inserts an admin.
func (r *AccountRepo) CreateAdmin(ctx context.Context, a *model.Admin) error {
	a.Email = normalizeEmail(a.Email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO admins (email, password_hash, name) VALUES (?,?,?)",
		a.Email, a.PasswordHash, a.Name)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetAdmin(ctx, uint64(id))
	if err != nil {
		return err
	}
	*a = *fresh
	return nil
}

// GetUser fetches a user by id.
func (r *AccountRepo) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, "SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetOwner fetches an owner by id.
func (r *AccountRepo) GetOwner(ctx context.Context, id uint64) (*model.Owner, error) {
	o, err := scanOwner(r.DB.QueryRowContext(ctx, "SELECT "+ownerCols+" FROM owners WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOwnerNotFound
	}
	return o, err
}

// GetAdmin fetches an admin by id.
func (r *AccountRepo) GetAdmin(ctx context.Context, id uint64) (*model.Admin, error) {
	a, err := scanAdmin(r.DB.QueryRowContext(ctx, "SELECT "+adminCols+" FROM admins WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	return a, err
}

// GetAccount loads the account of the given kind by id.
func (r *AccountRepo) GetAccount(ctx context.Context, role model.Role, id uint64) (model.Account, error) {
	var (
		acc model.Account
		err error
	)
	switch role {
	case model.RoleUser:
		var u *model.User
		if u, err = r.GetUser(ctx, id); err == nil {
			acc = u
		}
	case model.RoleOwner:
		var o *model.Owner
		if o, err = r.GetOwner(ctx, id); err == nil {
			acc = o
		}
	case model.RoleAdmin:
		var a *model.Admin
		if a, err = r.GetAdmin(ctx, id); err == nil {
			acc = a
		}
	default:
		err = fmt.Errorf("unknown role %q", role)
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// GetAccountByEmail loads the account of the given kind by normalized email.
func (r *AccountRepo) GetAccountByEmail(ctx context.Context, role model.Role, email string) (model.Account, error) {
	email = normalizeEmail(email)
	switch role {
	case model.RoleUser:
		u, err := scanUser(r.DB.QueryRowContext(ctx, "SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	case model.RoleOwner:
		o, err := scanOwner(r.DB.QueryRowContext(ctx, "SELECT "+ownerCols+" FROM owners WHERE email=? LIMIT 1", email))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		if err != nil {
			return nil, err
		}
		return o, nil
	case model.RoleAdmin:
		a, err := scanAdmin(r.DB.QueryRowContext(ctx, "SELECT "+adminCols+" FROM admins WHERE email=? LIMIT 1", email))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown role %q", role)
}

func accountTable(role model.Role) (string, error) {
	switch role {
	case model.RoleUser:
		return "users", nil
	case model.RoleOwner:
		return "owners", nil
	case model.RoleAdmin:
		return "admins", nil
	}
	return "", fmt.Errorf("unknown role %q", role)
}

// UpdateProfile applies the non-nil fields of p that the account kind
// supports and returns the reloaded account.
func (r *AccountRepo) UpdateProfile(ctx context.Context, role model.Role, id uint64, p model.ProfileUpdate) (model.Account, error) {
	table, err := accountTable(role)
	if err != nil {
		return nil, err
	}
	sets := []string{}
	args := []any{}
	if p.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, strings.TrimSpace(*p.Name))
	}
	if p.Phone != nil && role != model.RoleAdmin {
		sets = append(sets, "phone=?")
		args = append(args, strings.TrimSpace(*p.Phone))
	}
	if p.Address != nil && role == model.RoleUser {
		sets = append(sets, "address=?")
		args = append(args, strings.TrimSpace(*p.Address))
	}
	if p.BusinessName != nil && role == model.RoleOwner {
		sets = append(sets, "business_name=?")
		args = append(args, strings.TrimSpace(*p.BusinessName))
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := r.DB.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
			return nil, err
		}
	}
	return r.GetAccount(ctx, role, id)
}

// UpdatePassword replaces the stored hash.
func (r *AccountRepo) UpdatePassword(ctx context.Context, role model.Role, id uint64, hash string) error {
	table, err := accountTable(role)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE "+table+" SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Errorf("%s %w", role, ErrNotFound))
}

// SetOwnerApproved flips the approval flag.
func (r *AccountRepo) SetOwnerApproved(ctx context.Context, id uint64, approved bool) error {
	if _, err := r.GetOwner(ctx, id); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, "UPDATE owners SET approved=? WHERE id=?", approved, id)
	return err
}

// ListOwners returns owners filtered by approval state, newest first.
func (r *AccountRepo) ListOwners(ctx context.Context, approved bool) ([]*model.Owner, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+ownerCols+" FROM owners WHERE approved=? ORDER BY created_at DESC, id DESC", approved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Owner{}
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListUsers returns every user, newest first.
func (r *AccountRepo) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userCols+" FROM users ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListAdminIDs returns the ids of every admin, used for platform-wide fan-out.
func (r *AccountRepo) ListAdminIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id FROM admins ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ToggleWishlist flips membership of productID in the user's wishlist
// under a row lock and returns the new list.
func (r *AccountRepo) ToggleWishlist(ctx context.Context, userID, productID uint64) ([]uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var raw []byte
	if err := tx.QueryRowContext(ctx, "SELECT wishlist FROM users WHERE id=? FOR UPDATE", userID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	current, err := decodeWishlist(raw)
	if err != nil {
		return nil, err
	}
	next := model.ToggleWishlist(current, productID)
	body, err := encodeWishlist(next)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET wishlist=? WHERE id=?", body, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return next, nil
}

// Stats summarizes platform counts for the admin dashboard.
type Stats struct {
	Users           int64 `json:"users"`
	Owners          int64 `json:"owners"`
	PendingOwners   int64 `json:"pending_owners"`
	Shops           int64 `json:"shops"`
	Products        int64 `json:"products"`
	PendingProducts int64 `json:"pending_products"`
	Orders          int64 `json:"orders"`
	CompletedOrders int64 `json:"completed_orders"`
}

// Stats runs one aggregate query over the main tables.
func (r *AccountRepo) Stats(ctx context.Context) (Stats, error) {
	const q = `SELECT
	    (SELECT COUNT(*) FROM users),
	    (SELECT COUNT(*) FROM owners),
	    (SELECT COUNT(*) FROM owners WHERE approved = 0),
	    (SELECT COUNT(*) FROM shops),
	    (SELECT COUNT(*) FROM products),
	    (SELECT COUNT(*) FROM products WHERE status = 'pending'),
	    (SELECT COUNT(*) FROM orders),
	    (SELECT COUNT(*) FROM orders WHERE status = 'completed')`
	var s Stats
	err := r.DB.QueryRowContext(ctx, q).Scan(&s.Users, &s.Owners, &s.PendingOwners, &s.Shops,
		&s.Products, &s.PendingProducts, &s.Orders, &s.CompletedOrders)
	return s, err
}
