package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/markbates/goth/gothic"
	"github.com/rs/zerolog/log"

	"gbconnect/internal/middlewares"
	"gbconnect/internal/models"
	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (a *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	user, err := a.authService.Signup(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, "signup")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account created. Check your email for the verification code.",
		"user":    user,
	})
}

func (a *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	resp, err := a.authService.VerifySignup(r.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(w, r, err, "verify otp")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (a *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.EmailRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	if err := a.authService.ResendSignupOTP(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err, "resend otp")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "A new verification code has been sent."})
}

func (a *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Login
	if err := utils.DecodeJSONBody(w, r, &creds); err != nil {
		return
	}

	resp, err := a.authService.Login(r.Context(), &creds)
	if err != nil {
		writeServiceError(w, r, err, "login")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (a *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.EmailRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	if err := a.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err, "forgot password")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for this email, a reset code has been sent.",
	})
}

func (a *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	if err := a.authService.ResetPassword(r.Context(), &req); err != nil {
		writeServiceError(w, r, err, "reset password")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset. You can now log in."})
}

func (a *AuthHandler) ProviderAuth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if provider == "" {
		utils.SendJSONError(w, "Provider not specified", http.StatusBadRequest)
		return
	}

	log.Info().Str("provider", provider).Msg("Initiating authentication with provider")
	gothic.BeginAuthHandler(w, r)
}

func (a *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	providerUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		log.Error().Err(err).Msg("Error completing user authentication")
		http.Redirect(w, r, "/api/auth/error", http.StatusTemporaryRedirect)
		return
	}

	token, err := a.authService.HandleOAuthLogin(r.Context(), providerUser)
	if err != nil {
		log.Error().Err(err).Str("provider", providerUser.Provider).Msg("Error handling login after provider authentication")
		http.Redirect(w, r, "/api/auth/error", http.StatusTemporaryRedirect)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middlewares.AuthCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(utils.TokenTTL),
	})
	http.Redirect(w, r, "/api/auth/success", http.StatusTemporaryRedirect)
}

func (a *AuthHandler) AuthSuccess(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Authentication successful"})
}

func (a *AuthHandler) AuthError(w http.ResponseWriter, r *http.Request) {
	utils.SendJSONError(w, "Authentication failed. Please try again.", http.StatusBadRequest)
}
