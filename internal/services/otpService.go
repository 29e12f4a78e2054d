package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"gbconnect/internal/cache"
	"gbconnect/internal/metrics"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
	"gbconnect/internal/utils"
)

const (
	OTPLength            = 6
	OTPExpirationMinutes = 10
	OTPResendCooldown    = 60 * time.Second
)

// OTPService issues and consumes one-time codes. Signup verification and password reset
// share it and differ only by purpose.
type OTPService interface {
	Issue(ctx context.Context, email, purpose string) error
	Consume(ctx context.Context, email, code, purpose string) error
}

type otpService struct {
	otpRepo      repositories.OTPRepository
	emailService EmailService
	cache        cache.Cache
}

func NewOTPService(otpRepo repositories.OTPRepository, emailService EmailService, c cache.Cache) OTPService {
	return &otpService{otpRepo: otpRepo, emailService: emailService, cache: c}
}

func otpMessage(purpose, code string) (string, string) {
	switch purpose {
	case models.OTPPurposeResetPassword:
		return "Your GBConnect password reset code",
			fmt.Sprintf("<p>Your code to reset your password is: <strong>%s</strong></p><p>It expires in %d minutes.</p>", code, OTPExpirationMinutes)
	default:
		return "Verify your GBConnect account",
			fmt.Sprintf("<p>Welcome to GBConnect! Your verification code is: <strong>%s</strong></p><p>It expires in %d minutes.</p>", code, OTPExpirationMinutes)
	}
}

func (s *otpService) Issue(ctx context.Context, email, purpose string) error {
	cooldownKey := "otp:cooldown:" + purpose + ":" + email
	allowed, err := s.cache.SetNX(ctx, cooldownKey, OTPResendCooldown)
	if err != nil {
		// throttling is best effort when the cache is down
		log.Warn().Err(err).Str("email", email).Msg("OTP cooldown check failed")
		allowed = true
	}
	if !allowed {
		log.Warn().Str("email", email).Str("purpose", purpose).Msg("OTP requested again within cooldown")
		return fmt.Errorf("%w: please wait before requesting another code", ErrTooManyRequests)
	}

	code, err := utils.GenerateSecureOTP(OTPLength)
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}

	if err := s.otpRepo.InvalidateActive(ctx, email, purpose); err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to invalidate previous OTPs")
		return err
	}

	otp := &models.OTP{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().UTC().Add(OTPExpirationMinutes * time.Minute),
	}
	if _, err := s.otpRepo.Create(ctx, otp); err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to store OTP")
		return err
	}

	subject, body := otpMessage(purpose, code)
	if err := s.emailService.SendEmail(email, subject, body); err != nil {
		_ = s.cache.Delete(ctx, cooldownKey)
		return fmt.Errorf("%w: could not send verification email", ErrUnavailable)
	}

	metrics.OTPSentTotal.WithLabelValues(purpose).Inc()
	log.Info().Str("email", email).Str("purpose", purpose).Msg("OTP issued")
	return nil
}

func (s *otpService) Consume(ctx context.Context, email, code, purpose string) error {
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}

	otp, err := s.otpRepo.Consume(ctx, email, code, purpose)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to consume OTP")
		return err
	}
	if otp == nil {
		log.Warn().Str("email", email).Str("purpose", purpose).Msg("Invalid or expired OTP")
		return fmt.Errorf("%w: invalid or expired code", ErrInvalidInput)
	}
	return nil
}
