package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetEmailsByIDs resolves recipient ids to email addresses; ids with no
	// user or no email are simply absent from the result map.
	GetEmailsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetEmailsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Select("id", "email").
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	emails := make(map[uuid.UUID]string, len(users))
	for _, user := range users {
		if user.Email != "" {
			emails[user.ID] = user.Email
		}
	}
	return emails, nil
}
