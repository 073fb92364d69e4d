package store

import (
	"context"
	"fmt"

	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/models"
)

const storeColumns = `id, owner_id, name, description, created_at, updated_at`

func scanStore(row interface{ Scan(...interface{}) error }, s *models.Store) error {
	return row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
}

// CreateStore opens the owner's store. An owner may hold at most one.
func CreateStore(ctx context.Context, q database.Querier, ownerID int64, name, description string) (*models.Store, error) {
	s := &models.Store{}

	query := `
		INSERT INTO stores (owner_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + storeColumns

	if err := scanStore(q.QueryRowContext(ctx, query, ownerID, name, description), s); err != nil {
		if database.IsUniqueViolation(err, "stores_owner_id_key") {
			return nil, database.ErrStoreExists
		}
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("create store: %w", err)
	}

	return s, nil
}

func GetStore(ctx context.Context, q database.Querier, id int64) (*models.Store, error) {
	s := &models.Store{}

	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`

	if err := scanStore(q.QueryRowContext(ctx, query, id), s); err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrStoreNotFound
		}
		return nil, fmt.Errorf("get store: %w", err)
	}

	return s, nil
}

func GetStoreByOwner(ctx context.Context, q database.Querier, ownerID int64) (*models.Store, error) {
	s := &models.Store{}

	query := `SELECT ` + storeColumns + ` FROM stores WHERE owner_id = $1`

	if err := scanStore(q.QueryRowContext(ctx, query, ownerID), s); err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrStoreNotFound
		}
		return nil, fmt.Errorf("get store by owner: %w", err)
	}

	return s, nil
}
