package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paisabook/paisabook/model"
)

// CreateCategory inserts a new category and returns it with its generated ID.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCategory(category); err != nil {
		return nil, err
	}
	return s.createCategoryTx(ctx, s.db, category)
}

func (s *SQLiteStorage) createCategoryTx(ctx context.Context, q queryable, category *model.Category) (*model.Category, error) {
	created := *category
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO categories (id, name, color, type, created_at)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := q.ExecContext(ctx, query,
		created.ID, created.Name, created.Color, string(created.Type), created.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	slog.Debug("created category", "id", created.ID, "name", created.Name)
	return &created, nil
}

// GetCategoryByID returns a category by ID, or nil if it does not exist.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getCategoryByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getCategoryByIDTx(ctx context.Context, q queryable, id string) (*model.Category, error) {
	query := `
		SELECT id, name, color, type, created_at
		FROM categories
		WHERE id = ?`

	return scanCategoryRow(q.QueryRowContext(ctx, query, id))
}

// GetCategoryByName returns a category by its unique name, or nil if it does
// not exist.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getCategoryByNameTx(ctx, s.db, name)
}

func (s *SQLiteStorage) getCategoryByNameTx(ctx context.Context, q queryable, name string) (*model.Category, error) {
	query := `
		SELECT id, name, color, type, created_at
		FROM categories
		WHERE name = ?`

	return scanCategoryRow(q.QueryRowContext(ctx, query, name))
}

func scanCategoryRow(row *sql.Row) (*model.Category, error) {
	var cat model.Category
	var catType string
	err := row.Scan(&cat.ID, &cat.Name, &cat.Color, &catType, &cat.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Category not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	cat.Type = model.TransactionType(catType)
	return &cat, nil
}

// GetCategories returns all categories in insertion order.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoriesTx(ctx, s.db)
}

func (s *SQLiteStorage) getCategoriesTx(ctx context.Context, q queryable) ([]model.Category, error) {
	query := `
		SELECT id, name, color, type, created_at
		FROM categories
		ORDER BY rowid`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		var catType string
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Color, &catType, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.Type = model.TransactionType(catType)
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// UpdateCategory applies a partial update to a category.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.updateCategoryTx(ctx, s.db, id, patch)
}

func (s *SQLiteStorage) updateCategoryTx(ctx context.Context, q queryable, id string, patch model.CategoryPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	setClauses := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if patch.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Color != nil {
		setClauses = append(setClauses, "color = ?")
		args = append(args, *patch.Color)
	}
	if patch.Type != nil {
		setClauses = append(setClauses, "type = ?")
		args = append(args, string(*patch.Type))
	}
	args = append(args, id)

	query := "UPDATE categories SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	slog.Debug("updated category", "id", id)
	return nil
}

// DeleteCategory removes a category. Transactions referencing it keep their
// denormalized category name and dangling category ID.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteCategoryTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteCategoryTx(ctx context.Context, q queryable, id string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	slog.Debug("deleted category", "id", id)
	return nil
}
