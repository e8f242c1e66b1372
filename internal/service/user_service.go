package service

import (
	"agrichat-web/internal/model"
	"agrichat-web/internal/repository"
	"agrichat-web/pkg/hash"
	"agrichat-web/pkg/log"
	"agrichat-web/pkg/token"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUserExists 表示用户名已被注册。
	ErrUserExists = errors.New("username already exists")
	// ErrInvalidCredentials 表示用户名或密码错误。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidUsername 表示用户名或密码为空。
	ErrInvalidUsername = errors.New("username and password are required")
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(username, password string) (*model.User, error)
	// Login 校验密码并签发访问令牌。
	Login(username, password string) (accessToken string, user *model.User, err error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidUsername
	}

	// 1. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(username)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 将用户存入数据库以生成ID
	newUser := &model.User{
		Username: username,
		Password: hashedPassword,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		log.Errorf("[UserService] 创建用户失败, username: %s, error: %v", username, err)
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(username, password string) (string, *model.User, error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	// 2. 校验密码
	if !hash.CheckPasswordHash(password, user.Password) {
		return "", nil, ErrInvalidCredentials
	}

	// 3. 生成 token
	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("生成 token 失败: %w", err)
	}
	log.Infof("[UserService] 用户登录成功, username: %s", user.Username)
	return accessToken, user, nil
}
