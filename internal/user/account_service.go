package user

import (
	"context"
	"errors"
	"log"
	"strings"

	"chatrelay/internal/constants"
	"chatrelay/internal/errs"
	"chatrelay/internal/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AccountService 身份存储
type AccountService struct {
	db *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db}
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// GetUserByID 通过ID获取用户
func (s *AccountService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Store("GetUserByID", err)
	}
	return &user, nil
}

// GetUserByUsername 通过用户名获取用户（大小写不敏感）
func (s *AccountService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username_key = ?", usernameKey(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Store("GetUserByUsername", err)
	}
	return &user, nil
}

// CreateOrLogin 登录，用户名不存在时注册新用户
func (s *AccountService) CreateOrLogin(ctx context.Context, username, password, avatar string) (*model.User, error) {
	username = strings.TrimSpace(username)

	existing, err := s.GetUserByUsername(ctx, username)
	if errors.Is(err, errs.ErrNotFound) {
		return s.register(ctx, username, password, avatar)
	}
	if err != nil {
		return nil, err
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(existing.Password), []byte(password)); err != nil {
		log.Printf("用户 %s 密码验证失败", username)
		return nil, errs.ErrAuth
	}

	if avatar != "" && avatar != existing.Avatar {
		if err := s.db.WithContext(ctx).Model(existing).Update("avatar", avatar).Error; err != nil {
			return nil, errs.Store("UpdateAvatar", err)
		}
		existing.Avatar = avatar
	}

	log.Printf("用户 %s (ID: %s) 登录成功", existing.Username, existing.ID)
	return existing, nil
}

func (s *AccountService) register(ctx context.Context, username, password, avatar string) (*model.User, error) {
	// 哈希密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := model.User{
		ID:          constants.UserIDPrefix + uuid.New().String(),
		Username:    username,
		UsernameKey: usernameKey(username),
		Avatar:      avatar,
		Password:    string(hashedPassword),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, errs.Store("CreateUser", err)
	}

	log.Printf("新用户 %s 注册成功 (ID: %s)", user.Username, user.ID)
	return &user, nil
}

// SearchUsers 搜索用户，query 为空时返回全部用户
func (s *AccountService) SearchUsers(ctx context.Context, query, excludeID string) ([]model.User, error) {
	tx := s.db.WithContext(ctx).Model(&model.User{})
	if q := usernameKey(query); q != "" {
		tx = tx.Where("username_key LIKE ?", "%"+q+"%")
	}
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}

	var users []model.User
	if err := tx.Order("username_key").Find(&users).Error; err != nil {
		return nil, errs.Store("SearchUsers", err)
	}
	return users, nil
}

// ListUsers 列出全部用户
func (s *AccountService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.SearchUsers(ctx, "", "")
}
