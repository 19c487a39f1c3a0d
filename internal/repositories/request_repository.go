package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"prontoBack/internal/models"
)

type RequestRepository struct {
	DB *sql.DB
}

func (r *RequestRepository) CreateRequest(ctx context.Context, req models.ServiceRequest) (models.ServiceRequest, error) {
	if req.MaxQuotes <= 0 {
		req.MaxQuotes = models.DefaultMaxQuotes
	}
	res, err := r.DB.ExecContext(ctx, `
        INSERT INTO service_requests (user_id, category, description, city, province, latitude, longitude, quotes_received, max_quotes, is_expired)
        VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, FALSE)`,
		req.UserID, req.Category, req.Description, req.City, req.Province, req.Latitude, req.Longitude, req.MaxQuotes)
	if err != nil {
		return models.ServiceRequest{}, fmt.Errorf("create request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.ServiceRequest{}, err
	}
	req.ID = int(id)
	req.QuotesReceived = 0
	req.IsExpired = false
	return req, nil
}

func (r *RequestRepository) GetRequestByID(ctx context.Context, id int) (models.ServiceRequest, error) {
	row := r.DB.QueryRowContext(ctx, `
        SELECT id, user_id, category, description, city, province, latitude, longitude, quotes_received, max_quotes, is_expired, created_at
        FROM service_requests WHERE id = ?`, id)
	return scanRequest(row)
}

// AvailableRequests lists open requests, newest first. Expired requests stay in
// the table but never show up here.
func (r *RequestRepository) AvailableRequests(ctx context.Context, category string) ([]models.ServiceRequest, error) {
	query := `
        SELECT id, user_id, category, description, city, province, latitude, longitude, quotes_received, max_quotes, is_expired, created_at
        FROM service_requests WHERE is_expired = FALSE`
	args := []any{}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// HasPurchased reports whether the professional already bought contact access.
func (r *RequestRepository) HasPurchased(ctx context.Context, requestID, professionalID int) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM request_purchases WHERE request_id = ? AND professional_id = ?`,
		requestID, professionalID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurchasedBy returns the professional ids holding contact access.
func (r *RequestRepository) PurchasedBy(ctx context.Context, requestID int) ([]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT professional_id FROM request_purchases WHERE request_id = ? ORDER BY created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRequest(scanner interface{ Scan(dest ...any) error }) (models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := scanner.Scan(&req.ID, &req.UserID, &req.Category, &req.Description, &req.City, &req.Province,
		&req.Latitude, &req.Longitude, &req.QuotesReceived, &req.MaxQuotes, &req.IsExpired, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return models.ServiceRequest{}, models.ErrRequestNotFound
	}
	return req, err
}
