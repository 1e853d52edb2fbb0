package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
)

// AdminRole is the role claim carried by every admin token.
const AdminRole = "admin"

// AdminAuthService registers admins and issues bearer tokens.
type AdminAuthService interface {
	Register(ctx context.Context, req dto.AdminRegisterRequest) (dto.AdminResponse, error)
	Login(ctx context.Context, req dto.AdminLoginRequest) (dto.AdminLoginResponse, error)
	Profile(ctx context.Context, id uint) (dto.AdminResponse, error)
}

type adminAuthService struct {
	repo      repository.AdminRepository
	validator *validator.Validate
	secret    []byte
	ttl       time.Duration
	cost      int
	now       func() time.Time
	logger    zerolog.Logger
}

// NewAdminAuthService constructs the admin authentication service.
func NewAdminAuthService(repo repository.AdminRepository, validate *validator.Validate, secret string, ttl time.Duration, logger zerolog.Logger) AdminAuthService {
	if validate == nil {
		validate = validator.New()
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &adminAuthService{
		repo:      repo,
		validator: validate,
		secret:    []byte(secret),
		ttl:       ttl,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
		logger:    logger.With().Str("component", "admin_auth_service").Logger(),
	}
}

func (s *adminAuthService) Register(ctx context.Context, req dto.AdminRegisterRequest) (dto.AdminResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return dto.AdminResponse{}, err
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return dto.AdminResponse{}, err
	}
	if exists {
		return dto.AdminResponse{}, ErrAdminExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return dto.AdminResponse{}, err
	}

	admin := models.Admin{Username: req.Username, Email: req.Email, Password: string(hash)}
	if err := s.repo.Create(ctx, &admin); err != nil {
		if isDuplicateKey(err) {
			return dto.AdminResponse{}, ErrAdminExists
		}
		return dto.AdminResponse{}, err
	}

	s.logger.Info().Uint("admin_id", admin.ID).Msg("admin registered")
	return dto.NewAdminResponse(admin), nil
}

func (s *adminAuthService) Login(ctx context.Context, req dto.AdminLoginRequest) (dto.AdminLoginResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return dto.AdminLoginResponse{}, err
	}

	admin, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return dto.AdminLoginResponse{}, mapNotFound(err, ErrAdminNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
		s.logger.Warn().Uint("admin_id", admin.ID).Msg("admin login rejected")
		return dto.AdminLoginResponse{}, ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    admin.ID,
		"email": admin.Email,
		"role":  AdminRole,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return dto.AdminLoginResponse{}, err
	}

	return dto.AdminLoginResponse{
		Message: "Login successful",
		Token:   signed,
		Admin:   dto.NewAdminResponse(admin),
	}, nil
}

func (s *adminAuthService) Profile(ctx context.Context, id uint) (dto.AdminResponse, error) {
	admin, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.AdminResponse{}, mapNotFound(err, ErrAdminNotFound)
	}
	return dto.NewAdminResponse(admin), nil
}
