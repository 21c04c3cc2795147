package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"GoldPledge/internal/model"
)

// ErrConflict is returned when a unique key is already taken.
var ErrConflict = errors.New("already exists")

type Repository interface {
	ListGoldRates(ctx context.Context) ([]model.GoldRate, error)
	GetGoldRate(ctx context.Context, purity model.Purity, schemeID int) (model.GoldRate, error)
	UpsertGoldRate(ctx context.Context, purity model.Purity, schemeID int, ratePerGram float64) (model.GoldRate, error)
	DeleteGoldRate(ctx context.Context, id int) error

	ListInterestSchemes(ctx context.Context) ([]model.InterestScheme, error)
	GetInterestScheme(ctx context.Context, id int) (model.InterestScheme, error)
	CreateInterestScheme(ctx context.Context, rate float64, label string) (model.InterestScheme, error)
	UpdateInterestScheme(ctx context.Context, s model.InterestScheme) (model.InterestScheme, error)
	DeleteInterestScheme(ctx context.Context, id int) error

	CreateUser(ctx context.Context, username, passwordHash string, role model.Role) (model.User, error)
	GetUser(ctx context.Context, id int) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, u model.User) (model.User, error)
	DeleteUser(ctx context.Context, id int) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const goldRateColumns = "id, purity, interest_scheme_id, rate_per_gram, updated_at"

func scanGoldRate(row interface{ Scan(...any) error }) (model.GoldRate, error) {
	var gr model.GoldRate
	var purity string
	err := row.Scan(&gr.ID, &purity, &gr.InterestSchemeID, &gr.RatePerGram, &gr.UpdatedAt)
	gr.Purity = model.Purity(purity)
	return gr, err
}

func (r *PostgresRepository) ListGoldRates(ctx context.Context) ([]model.GoldRate, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+goldRateColumns+" FROM gold_rates ORDER BY interest_scheme_id, purity")
	if err != nil {
		return nil, fmt.Errorf("list gold rates: %w", err)
	}
	defer rows.Close()

	var out []model.GoldRate
	for rows.Next() {
		gr, err := scanGoldRate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gold rate: %w", err)
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetGoldRate(ctx context.Context, purity model.Purity, schemeID int) (model.GoldRate, error) {
	query := "SELECT " + goldRateColumns + " FROM gold_rates WHERE purity=$1 AND interest_scheme_id=$2"
	gr, err := scanGoldRate(r.db.QueryRowContext(ctx, query, string(purity), schemeID))
	if err == sql.ErrNoRows {
		return model.GoldRate{}, fmt.Errorf("gold rate %s/%d: %w", purity, schemeID, model.ErrNotFound)
	}
	if err != nil {
		return model.GoldRate{}, fmt.Errorf("get gold rate: %w", err)
	}
	return gr, nil
}

// UpsertGoldRate replaces the rate for purity under schemeID, creating it if needed.
func (r *PostgresRepository) UpsertGoldRate(ctx context.Context, purity model.Purity, schemeID int, ratePerGram float64) (model.GoldRate, error) {
	query := `
		INSERT INTO gold_rates (purity, interest_scheme_id, rate_per_gram, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (purity, interest_scheme_id)
		DO UPDATE SET rate_per_gram = EXCLUDED.rate_per_gram, updated_at = CURRENT_TIMESTAMP
		RETURNING ` + goldRateColumns
	gr, err := scanGoldRate(r.db.QueryRowContext(ctx, query, string(purity), schemeID, ratePerGram))
	if err != nil {
		return model.GoldRate{}, mapError(fmt.Sprintf("upsert gold rate %s/%d", purity, schemeID), err)
	}
	return gr, nil
}

func (r *PostgresRepository) DeleteGoldRate(ctx context.Context, id int) error {
	return r.exec(ctx, "delete gold rate", "DELETE FROM gold_rates WHERE id=$1", id)
}

func (r *PostgresRepository) ListInterestSchemes(ctx context.Context) ([]model.InterestScheme, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, rate, label FROM interest_schemes ORDER BY rate")
	if err != nil {
		return nil, fmt.Errorf("list interest schemes: %w", err)
	}
	defer rows.Close()

	var out []model.InterestScheme
	for rows.Next() {
		var s model.InterestScheme
		if err := rows.Scan(&s.ID, &s.Rate, &s.Label); err != nil {
			return nil, fmt.Errorf("scan interest scheme: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetInterestScheme(ctx context.Context, id int) (model.InterestScheme, error) {
	var s model.InterestScheme
	err := r.db.QueryRowContext(ctx, "SELECT id, rate, label FROM interest_schemes WHERE id=$1", id).
		Scan(&s.ID, &s.Rate, &s.Label)
	if err == sql.ErrNoRows {
		return s, fmt.Errorf("interest scheme %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return s, fmt.Errorf("get interest scheme: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) CreateInterestScheme(ctx context.Context, rate float64, label string) (model.InterestScheme, error) {
	s := model.InterestScheme{Rate: rate, Label: label}
	err := r.db.QueryRowContext(ctx, "INSERT INTO interest_schemes (rate, label) VALUES ($1, $2) RETURNING id", rate, label).
		Scan(&s.ID)
	if err != nil {
		return model.InterestScheme{}, fmt.Errorf("create interest scheme: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) UpdateInterestScheme(ctx context.Context, s model.InterestScheme) (model.InterestScheme, error) {
	err := r.db.QueryRowContext(ctx, "UPDATE interest_schemes SET rate=$1, label=$2 WHERE id=$3 RETURNING id", s.Rate, s.Label, s.ID).
		Scan(&s.ID)
	if err == sql.ErrNoRows {
		return model.InterestScheme{}, fmt.Errorf("interest scheme %d: %w", s.ID, model.ErrNotFound)
	}
	if err != nil {
		return model.InterestScheme{}, fmt.Errorf("update interest scheme: %w", err)
	}
	return s, nil
}

// DeleteInterestScheme also removes the scheme's gold rates through the cascade.
func (r *PostgresRepository) DeleteInterestScheme(ctx context.Context, id int) error {
	return r.exec(ctx, "delete interest scheme", "DELETE FROM interest_schemes WHERE id=$1", id)
}

func (r *PostgresRepository) CreateUser(ctx context.Context, username, passwordHash string, role model.Role) (model.User, error) {
	u := model.User{Username: username, PasswordHash: passwordHash, Role: role}
	query := "INSERT INTO users (username, password, role) VALUES ($1, $2, $3) RETURNING id"
	if err := r.db.QueryRowContext(ctx, query, username, passwordHash, string(role)).Scan(&u.ID); err != nil {
		return model.User{}, mapError("create user "+username, err)
	}
	return u, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id int) (model.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getUser(ctx, "username", username)
}

func (r *PostgresRepository) getUser(ctx context.Context, column string, value any) (model.User, error) {
	var u model.User
	var role string
	query := "SELECT id, username, password, role FROM users WHERE " + column + "=$1"
	err := r.db.QueryRowContext(ctx, query, value).Scan(&u.ID, &u.Username, &u.PasswordHash, &role)
	if err == sql.ErrNoRows {
		return u, fmt.Errorf("user %v: %w", value, model.ErrNotFound)
	}
	if err != nil {
		return u, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)
	return u, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, username, password, role FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = model.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	query := "UPDATE users SET username=$1, password=$2, role=$3 WHERE id=$4 RETURNING id"
	err := r.db.QueryRowContext(ctx, query, u.Username, u.PasswordHash, string(u.Role), u.ID).Scan(&u.ID)
	if err == sql.ErrNoRows {
		return model.User{}, fmt.Errorf("user %d: %w", u.ID, model.ErrNotFound)
	}
	if err != nil {
		return model.User{}, mapError("update user", err)
	}
	return u, nil
}

func (r *PostgresRepository) DeleteUser(ctx context.Context, id int) error {
	return r.exec(ctx, "delete user", "DELETE FROM users WHERE id=$1", id)
}

func (r *PostgresRepository) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return nil
}

// mapError translates constraint violations into the store sentinels.
func mapError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			return fmt.Errorf("%s: %w", op, model.ErrNotFound)
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
