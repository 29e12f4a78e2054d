package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"gbconnect/internal/metrics"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
	"gbconnect/internal/utils"
)

const (
	MinPasswordLength = 8
	sessionMaxAge     = 86400 * 30
	defaultOAuthBase  = "http://localhost:8080"
)

type AuthService interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error)
	VerifySignup(ctx context.Context, email, code string) (*models.AuthResponse, error)
	ResendSignupOTP(ctx context.Context, email string) error
	Login(ctx context.Context, creds *models.Login) (*models.AuthResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error
	HandleOAuthLogin(ctx context.Context, u goth.User) (string, error)
}

type authService struct {
	userRepo   repositories.UserRepository
	otpService OTPService
}

func NewAuthService(userRepo repositories.UserRepository, otpService OTPService) AuthService {
	return &authService{userRepo: userRepo, otpService: otpService}
}

// InitializeGoth registers the OAuth providers that have credentials configured and the
// cookie store gothic keeps its state in. Call it once at startup.
func InitializeGoth() {
	sessionKey := os.Getenv("SESSION_KEY")
	if sessionKey == "" {
		log.Warn().Msg("SESSION_KEY not set, OAuth sessions use an insecure key")
		sessionKey = "gbconnect-dev-session-key"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.MaxAge(sessionMaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = os.Getenv("APP_ENV") == "production"
	store.Options.SameSite = http.SameSiteLaxMode
	gothic.Store = store

	base := strings.TrimRight(os.Getenv("OAUTH_CALLBACK_BASE"), "/")
	if base == "" {
		base = defaultOAuthBase
	}

	var providers []goth.Provider
	if id, secret := os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"); id != "" && secret != "" {
		providers = append(providers, google.New(id, secret, base+"/api/auth/google/callback", "email", "profile"))
	}
	if id, secret := os.Getenv("FACEBOOK_CLIENT_ID"), os.Getenv("FACEBOOK_CLIENT_SECRET"); id != "" && secret != "" {
		providers = append(providers, facebook.New(id, secret, base+"/api/auth/facebook/callback", "email"))
	}
	if len(providers) == 0 {
		log.Info().Msg("No OAuth providers configured")
		return
	}

	goth.UseProviders(providers...)
	log.Info().Int("providers", len(providers)).Msg("Goth providers initialized")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (a *authService) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	log.Debug().Str("email", email).Msg("Attempting to sign up user")

	if name == "" || email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	}
	if len(req.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	role := req.Role
	if role == "" {
		role = models.RoleTourist
	}
	if role != models.RoleTourist && role != models.RoleProvider {
		return nil, fmt.Errorf("%w: role must be tourist or provider", ErrInvalidInput)
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	existing, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		log.Error().Err(err).Str("email", email).Msg("Error checking email during signup")
		return nil, err
	}

	var user *models.User
	switch {
	case existing != nil && existing.Verified:
		log.Warn().Str("email", email).Msg("Signup attempted with registered email")
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	case existing != nil:
		// unverified accounts are refreshed with the latest details
		fields := bson.M{"name": name, "password": hashed, "role": role, "phone": strings.TrimSpace(req.Phone)}
		if _, err := a.userRepo.Update(ctx, existing.ID, fields); err != nil {
			return nil, err
		}
		existing.Name, existing.Password, existing.Role, existing.Phone = name, hashed, role, strings.TrimSpace(req.Phone)
		user = existing
	default:
		user = &models.User{
			Name:         name,
			Email:        email,
			Password:     hashed,
			Role:         role,
			Phone:        strings.TrimSpace(req.Phone),
			AuthProvider: models.AuthProviderLocal,
		}
		if _, err := a.userRepo.Create(ctx, user); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, fmt.Errorf("%w: email already registered", ErrConflict)
			}
			return nil, err
		}
		metrics.NewUsersTotal.Inc()
	}

	if err := a.otpService.Issue(ctx, email, models.OTPPurposeSignup); err != nil {
		if !errors.Is(err, ErrTooManyRequests) {
			return nil, err
		}
		// the code sent moments ago is still valid
		log.Info().Str("email", email).Msg("Signup repeated within OTP cooldown, keeping previous code")
	}

	log.Info().Str("user_id", user.ID.Hex()).Str("role", role).Msg("User signed up, awaiting verification")
	return user, nil
}

func (a *authService) VerifySignup(ctx context.Context, email, code string) (*models.AuthResponse, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	if err := a.otpService.Consume(ctx, email, strings.TrimSpace(code), models.OTPPurposeSignup); err != nil {
		return nil, err
	}

	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}

	if !user.Verified {
		if _, err := a.userRepo.Update(ctx, user.ID, bson.M{"verified": true}); err != nil {
			return nil, err
		}
		user.Verified = true
	}

	token, err := utils.GenerateJWT(user.ID, user.Role)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Could not generate token for user")
		return nil, fmt.Errorf("could not generate token: %w", err)
	}

	log.Info().Str("user_id", user.ID.Hex()).Msg("User verified email")
	return &models.AuthResponse{Token: token, User: user}, nil
}

func (a *authService) ResendSignupOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return err
	}
	if user.Verified {
		return fmt.Errorf("%w: account already verified", ErrInvalidInput)
	}

	return a.otpService.Issue(ctx, email, models.OTPPurposeSignup)
}

func (a *authService) Login(ctx context.Context, creds *models.Login) (*models.AuthResponse, error) {
	email := normalizeEmail(creds.Email)
	log.Debug().Str("email", email).Msg("Attempting user login")
	if email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
			log.Warn().Str("email", email).Msg("Invalid credentials during login attempt")
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		log.Error().Err(err).Str("email", email).Msg("Error finding user for login")
		return nil, err
	}

	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)) != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		log.Warn().Str("email", email).Msg("Invalid credentials (password mismatch) during login attempt")
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	if !user.Verified {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: please verify your email before logging in", ErrForbidden)
	}

	token, err := utils.GenerateJWT(user.ID, user.Role)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Could not generate token for user")
		return nil, fmt.Errorf("could not generate token: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	log.Info().Str("user_id", user.ID.Hex()).Msg("User logged in successfully")
	return &models.AuthResponse{Token: token, User: user}, nil
}

// ForgotPassword only fails on malformed input so callers cannot probe which addresses exist.
func (a *authService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			log.Error().Err(err).Str("email", email).Msg("Error finding user for password reset")
		}
		return nil
	}
	if user.AuthProvider != models.AuthProviderLocal {
		log.Info().Str("email", email).Str("provider", user.AuthProvider).Msg("Password reset requested for OAuth account")
		return nil
	}

	if err := a.otpService.Issue(ctx, email, models.OTPPurposeResetPassword); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Password reset code not issued")
	}
	return nil
}

func (a *authService) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" || req.Code == "" || req.NewPassword == "" {
		return fmt.Errorf("%w: email, code and new password are required", ErrInvalidInput)
	}
	if len(req.NewPassword) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: invalid or expired code", ErrInvalidInput)
		}
		return err
	}

	if err := a.otpService.Consume(ctx, email, strings.TrimSpace(req.Code), models.OTPPurposeResetPassword); err != nil {
		return err
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if _, err := a.userRepo.Update(ctx, user.ID, bson.M{"password": hashed}); err != nil {
		return err
	}

	log.Info().Str("user_id", user.ID.Hex()).Msg("Password reset successfully")
	return nil
}

func (a *authService) HandleOAuthLogin(ctx context.Context, u goth.User) (string, error) {
	email := normalizeEmail(u.Email)
	log.Info().Str("email", email).Str("provider", u.Provider).Msg("Attempting to handle OAuth login")
	if email == "" {
		log.Error().Msg("Missing email in Goth user data")
		return "", fmt.Errorf("%w: missing email", ErrInvalidInput)
	}

	user, err := a.userRepo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		name := u.Name
		if name == "" {
			name = u.NickName
		}
		user = &models.User{
			Name:         name,
			Email:        email,
			Role:         models.RoleTourist,
			AvatarURL:    u.AvatarURL,
			Verified:     true,
			AuthProvider: u.Provider,
		}
		if _, err := a.userRepo.Create(ctx, user); err != nil {
			log.Error().Err(err).Str("email", email).Msg("Error creating new user")
			return "", err
		}
		metrics.NewUsersTotal.Inc()
		log.Info().Str("user_id", user.ID.Hex()).Msg("New OAuth user created successfully")
	case err != nil:
		log.Error().Err(err).Str("email", email).Msg("Error finding user by email")
		return "", err
	case !user.Verified:
		// Nobody proved ownership of the pending signup, so its password and role are discarded.
		name := u.Name
		if name == "" {
			name = user.Name
		}
		update := bson.M{
			"verified":      true,
			"password":      "",
			"name":          name,
			"role":          models.RoleTourist,
			"auth_provider": u.Provider,
		}
		if _, err := a.userRepo.Update(ctx, user.ID, update); err != nil {
			log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Error claiming unverified account")
			return "", err
		}
		user.Verified = true
		user.Password = ""
		user.Name = name
		user.Role = models.RoleTourist
		user.AuthProvider = u.Provider
		log.Info().Str("user_id", user.ID.Hex()).Msg("Unverified account claimed through OAuth")
	}

	token, err := utils.GenerateJWT(user.ID, user.Role)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Error generating JWT for user")
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return token, nil
}
