package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createUser = `
INSERT INTO users (email, password_hash, first_name, last_name)
VALUES (lower($1), $2, $3, $4)
RETURNING id, email, password_hash, first_name, last_name, phone, address, city, postal_code, role, created_at, updated_at
`

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FirstName    pgtype.Text
	LastName     pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.Email, arg.PasswordHash, arg.FirstName, arg.LastName)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Address, &u.City, &u.PostalCode, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserByEmail = `
SELECT id, email, password_hash, first_name, last_name, phone, address, city, postal_code, role, created_at, updated_at
FROM users
WHERE email = lower($1)
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Address, &u.City, &u.PostalCode, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserByID = `
SELECT id, email, password_hash, first_name, last_name, phone, address, city, postal_code, role, created_at, updated_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Address, &u.City, &u.PostalCode, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const updateUserProfile = `
UPDATE users
SET first_name = COALESCE($2, first_name),
    last_name = COALESCE($3, last_name),
    phone = COALESCE($4, phone),
    address = COALESCE($5, address),
    city = COALESCE($6, city),
    postal_code = COALESCE($7, postal_code),
    updated_at = now()
WHERE id = $1
RETURNING id, email, password_hash, first_name, last_name, phone, address, city, postal_code, role, created_at, updated_at
`

type UpdateUserProfileParams struct {
	ID         pgtype.UUID
	FirstName  pgtype.Text
	LastName   pgtype.Text
	Phone      pgtype.Text
	Address    pgtype.Text
	City       pgtype.Text
	PostalCode pgtype.Text
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	row := q.db.QueryRow(ctx, updateUserProfile, arg.ID, arg.FirstName, arg.LastName, arg.Phone, arg.Address, arg.City, arg.PostalCode)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Address, &u.City, &u.PostalCode, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const countCustomers = `
SELECT count(*) FROM users WHERE role = 'customer'
`

func (q *Queries) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countCustomers).Scan(&n)
	return n, err
}
