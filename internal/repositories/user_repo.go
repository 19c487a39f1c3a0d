package repositories

import (
	"context"
	"database/sql"
	"time"

	"prontoBack/internal/models"
)

type UserRepository struct {
	DB *sql.DB
}

func (r *UserRepository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
        INSERT INTO users (name, email, password, role, city, province, is_premium, created_at)
        VALUES (?, ?, ?, ?, ?, ?, FALSE, ?)
    `
	user.CreatedAt = time.Now()
	result, err := r.DB.ExecContext(ctx, query,
		user.Name, user.Email, user.Password, user.Role, user.City, user.Province, user.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return models.User{}, models.ErrDuplicateEmail
		}
		return models.User{}, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.User{}, err
	}
	user.ID = int(id)
	user.Password = ""
	return user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (models.User, error) {
	var user models.User
	query := `
        SELECT id, name, email, password, role, city, province, is_premium, stripe_customer_id, created_at
        FROM users
        WHERE id = ?
    `
	var customerID sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Password, &user.Role,
		&user.City, &user.Province, &user.IsPremium, &customerID, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	if customerID.Valid {
		v := customerID.String
		user.StripeCustomerID = &v
	}
	return user, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	var customerID sql.NullString
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, name, email, password, role, city, province, is_premium, stripe_customer_id, created_at
        FROM users
        WHERE email = ?`, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.Password, &user.Role,
		&user.City, &user.Province, &user.IsPremium, &customerID, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	if customerID.Valid {
		v := customerID.String
		user.StripeCustomerID = &v
	}
	return user, nil
}

// SetPremiumByCustomer toggles the premium flag for the user owning the given
// provider customer id. Missing customers are not an error: subscription events
// can arrive for accounts created directly on the provider dashboard.
func (r *UserRepository) SetPremiumByCustomer(ctx context.Context, customerID string, premium bool) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE users SET is_premium = ? WHERE stripe_customer_id = ?`, premium, customerID)
	return err
}

func (r *UserRepository) CreateSession(ctx context.Context, session models.Session) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO sessions (user_id, role, refresh_token, expires_at)
        VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE refresh_token = VALUES(refresh_token), expires_at = VALUES(expires_at)`,
		session.UserID, session.Role, session.RefreshToken, session.ExpiresAt)
	return err
}

func (r *UserRepository) GetSessionByToken(ctx context.Context, refreshToken string) (models.Session, error) {
	var session models.Session
	err := r.DB.QueryRowContext(ctx, `
        SELECT user_id, role, refresh_token, expires_at FROM sessions WHERE refresh_token = ?`,
		refreshToken).Scan(&session.UserID, &session.Role, &session.RefreshToken, &session.ExpiresAt)
	if err == sql.ErrNoRows {
		return models.Session{}, nil
	}
	return session, err
}
