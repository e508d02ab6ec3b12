package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPhoneTaken         = errors.New("phone already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Address struct {
	DoorNo  string `json:"doorNo"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone"`
	Avatar    string    `json:"avatar"`
	Address   Address   `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repo struct{ DB *pgxpool.Pool }

const userCols = `id, email, first_name, last_name, phone, avatar,
       door_no, street, city, state, pincode, country, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.Avatar,
		&u.Address.DoorNo, &u.Address.Street, &u.Address.City, &u.Address.State,
		&u.Address.Pincode, &u.Address.Country, &u.CreatedAt)
	return u, err
}

func (r *Repo) Create(ctx context.Context, email, password, firstName, lastName, phone string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	_, err = r.DB.Exec(ctx, `
		INSERT INTO users(id, email, password_hash, first_name, last_name, phone)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		id, email, string(hash), firstName, lastName, phone)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "users_phone_key" {
				return nil, ErrPhoneTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *Repo) Authenticate(ctx context.Context, email, password string) (*User, error) {
	var id, hash string
	err := r.DB.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return r.Get(ctx, id)
}

func (r *Repo) Get(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ProfileUpdate is a typed partial update: nil fields are left untouched,
// set fields are written, including explicit empty strings.
type ProfileUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Avatar    *string `json:"avatar"`
	DoorNo    *string `json:"doorNo"`
	Street    *string `json:"street"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	Pincode   *string `json:"pincode"`
	Country   *string `json:"country"`
}

// buildProfileUpdate assembles the dynamic SET clause. Kept separate from the
// pool call so the assembly is unit-testable.
func buildProfileUpdate(id string, upd ProfileUpdate) (string, []any) {
	set := []struct {
		col string
		val *string
	}{
		{"first_name", upd.FirstName},
		{"last_name", upd.LastName},
		{"avatar", upd.Avatar},
		{"door_no", upd.DoorNo},
		{"street", upd.Street},
		{"city", upd.City},
		{"state", upd.State},
		{"pincode", upd.Pincode},
		{"country", upd.Country},
	}

	q := "UPDATE users SET updated_at = now()"
	args := []any{id}
	for _, s := range set {
		if s.val == nil {
			continue
		}
		args = append(args, *s.val)
		q += fmt.Sprintf(", %s = $%d", s.col, len(args))
	}
	q += " WHERE id = $1"
	return q, args
}

func (r *Repo) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	q, args := buildProfileUpdate(id, upd)
	ct, err := r.DB.Exec(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}
