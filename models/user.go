package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleStaff UserRole = "staff"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleAdmin || r == UserRoleStaff
}

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:10;not null;default:'staff'" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type LoginInfo struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

/*
caches:
	RevokedToken:$tokenId
*/

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil, validationErrorf("username and password are required")
	}

	var user User
	err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: invalid username or password", ErrAuth)
	}
	if err != nil {
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", ErrAuth)
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, fmt.Errorf("%w: user is disabled", ErrForbidden)
	}

	token, claims, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &LoginInfo{
		Token:     token,
		Username:  user.Username,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

// Logout deny-lists the current token until it would have expired anyway.
func Logout(ctx context.Context, expiresAt time.Time) error {
	tokenId, ok := utils.GetTokenIdFromContext(ctx)
	if !ok || tokenId == "" {
		return fmt.Errorf("%w: token is required", ErrAuth)
	}
	return utils.RevokeToken(tokenId, expiresAt)
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name"`
	Password string   `json:"password" binding:"required,min=6"`
	Role     UserRole `json:"role"`
}

// UpsertUser creates the user or resets name, password and role of an existing one.
func UpsertUser(ctx context.Context, input *NewUser) (*User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, validationErrorf("username is required")
	}
	if len(input.Password) < 6 {
		return nil, validationErrorf("password must be at least 6 characters")
	}
	role := input.Role
	if role == "" {
		role = UserRoleStaff
	}
	if !role.IsValid() {
		return nil, validationErrorf("role must be admin or staff")
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = username
	}

	active := true
	user := User{Username: username, Name: name, Password: hashed, Role: role, IsActive: &active}
	err = config.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "password", "role", "is_active", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return nil, err
	}
	var saved User
	if err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	var user User
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErrorf("user %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
