package todo

import (
	"context"

	"gorm.io/gorm"
)

// Repository reads and writes todos. Every query is scoped by the owner's
// user id; rows of other users are invisible to it.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db}
}

// List returns the todos of userID in insertion order.
func (r *Repository) List(ctx context.Context, userID string) ([]Todo, error) {
	todos := make([]Todo, 0)

	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&todos).Error; err != nil {
		return nil, err
	}

	return todos, nil
}

func (r *Repository) Add(ctx context.Context, userID string, title string) (*Todo, error) {
	todo := Todo{Title: title, Completed: false, UserID: userID}

	if err := r.db.WithContext(ctx).Create(&todo).Error; err != nil {
		return nil, err
	}

	return &todo, nil
}

// Delete removes the todo when userID owns it. It reports whether a row was
// deleted; a missing or foreign todo is not an error.
func (r *Repository) Delete(ctx context.Context, userID string, todoID uint64) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", todoID, userID).Delete(&Todo{})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// ToggleCompletion flips completed in a single statement so concurrent
// toggles of the same row are serialized by the database. It returns the
// updated todo, or nil when userID owns no todo with that id.
func (r *Repository) ToggleCompletion(ctx context.Context, userID string, todoID uint64) (*Todo, error) {
	var todo *Todo

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Todo{}).
			Where("id = ? AND user_id = ?", todoID, userID).
			Update("completed", gorm.Expr("NOT completed"))

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return nil
		}

		var updated Todo
		if err := tx.Where("id = ? AND user_id = ?", todoID, userID).Take(&updated).Error; err != nil {
			return err
		}

		todo = &updated

		return nil
	})

	if err != nil {
		return nil, err
	}

	return todo, nil
}
