package services

import (
	"context"
	"errors"
	"strings"

	"github.com/suvankar11223/chatzi-sub000/internal/models"
	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

// Users is the user directory: registration, login and profile edits.
type Users struct {
	db           *gorm.DB
	allowedHosts []string
}

func NewUsers(db *gorm.DB, allowedHosts []string) *Users {
	return &Users{db: db, allowedHosts: allowedHosts}
}

func (u *Users) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = utils.SanitizeName(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, apperrors.BadRequest("name and email are required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.BadRequest("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	user := &models.User{Name: name, Email: email, PasswordHash: string(hash)}
	if err := u.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("email already registered")
		}
		return nil, apperrors.Wrap(err, "failed to create user")
	}
	return user, nil
}

// Authenticate checks an email/password pair. Both failure modes return
// the same error.
func (u *Users) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := u.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, apperrors.Unauthorized("wrong email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("wrong email or password")
	}
	return &user, nil
}

func (u *Users) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Wrap(err, "failed to load user")
	}
	return &user, nil
}

// UpdateProfile changes the display name and/or avatar URL.
func (u *Users) UpdateProfile(ctx context.Context, id string, name, avatar *string) (*models.User, error) {
	updates := map[string]interface{}{}
	if name != nil {
		n := utils.SanitizeName(*name)
		if n == "" {
			return nil, apperrors.BadRequest("name cannot be empty")
		}
		updates["name"] = n
	}
	if avatar != nil {
		a := strings.TrimSpace(*avatar)
		if a != "" {
			if err := utils.ValidateAttachmentURL(a, u.allowedHosts); err != nil {
				return nil, apperrors.BadRequest(err.Error())
			}
		}
		updates["avatar"] = a
	}
	if len(updates) > 0 {
		if err := u.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(err, "failed to update profile")
		}
	}
	return u.Get(ctx, id)
}

// Contacts lists every other user, alphabetically.
func (u *Users) Contacts(ctx context.Context, userID string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	users := []models.User{}
	err := u.db.WithContext(ctx).
		Where("id <> ?", userID).
		Order("name").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list contacts")
	}
	return users, nil
}
