package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/server/auth/key"
	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/server/twilio"
	"github.com/Daskott/relief/session"
	"github.com/Daskott/relief/store"
	"github.com/Daskott/relief/utils"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const (
	OTP_LENGTH       = 6
	OTP_TTL          = 5 * time.Minute
	OTP_MAX_ATTEMPTS = 5

	ACCESS_TOKEN_TTL  = time.Hour
	REFRESH_TOKEN_TTL = 30 * 24 * time.Hour
)

var logg = logger.NewLogger()

// OTPService is the self-hosted phone sign in: it texts one time codes, keeps
// their hashes in the store and exchanges a correct code for RS256 tokens.
type OTPService struct {
	store     store.Store
	messenger twilio.Messenger
	keyPair   *key.KeyPair
	now       func() time.Time
}

func NewOTPService(s store.Store, messenger twilio.Messenger, keyPair *key.KeyPair) *OTPService {
	return &OTPService{
		store:     s,
		messenger: messenger,
		keyPair:   keyPair,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestCode texts a new code to phone, replacing any outstanding one.
func (svc *OTPService) RequestCode(ctx context.Context, phone string) error {
	code, err := generateCode()
	if err != nil {
		return err
	}

	hash, err := HashCode(code)
	if err != nil {
		return err
	}

	now := svc.now()
	row := &models.OTPCodeRow{
		Phone:      phone,
		CodeHash:   hash,
		ExpiresAt:  now.Add(OTP_TTL),
		Timestamps: models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	err = svc.store.Insert(ctx, models.TableOTPCodes, row, nil)
	if store.IsConflict(err) {
		err = svc.store.Update(ctx, models.TableOTPCodes, phoneFilter(phone), map[string]interface{}{
			"code_hash":  hash,
			"attempts":   0,
			"expires_at": row.ExpiresAt,
			"updated_at": now,
		}, nil)
	}

	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Your relief verification code is %v. It expires in %v minutes.", code, int(OTP_TTL.Minutes()))
	if err := svc.messenger.SendMessage(phone, msg); err != nil {
		return &session.AuthError{Status: http.StatusBadGateway, Code: "sms_send_failed", Message: err.Error()}
	}

	logg.Debugf("sent verification code to %v", utils.MaskPhone(phone))
	return nil
}

// VerifyCode checks code for phone and, when it matches, signs the phone's
// user in, creating the user on first sign in.
func (svc *OTPService) VerifyCode(ctx context.Context, phone string, code string) (*session.Session, error) {
	row := models.OTPCodeRow{}
	err := svc.store.SelectOne(ctx, models.TableOTPCodes, phoneFilter(phone), &row)
	if store.IsNotFound(err) {
		return nil, &session.AuthError{Status: http.StatusBadRequest, Code: "otp_not_found", Message: "no verification code was sent to this phone"}
	}

	if err != nil {
		return nil, err
	}

	if svc.now().After(row.ExpiresAt) {
		if err := svc.store.Delete(ctx, models.TableOTPCodes, phoneFilter(phone)); err != nil {
			logg.Warnf("failed to delete expired code for %v: %v", utils.MaskPhone(phone), err)
		}
		return nil, &session.AuthError{Status: http.StatusBadRequest, Code: "otp_expired", Message: "verification code has expired"}
	}

	if row.Attempts >= OTP_MAX_ATTEMPTS {
		return nil, &session.AuthError{Status: http.StatusTooManyRequests, Code: "otp_attempts_exceeded", Message: "too many attempts, request a new code"}
	}

	// the attempt is spent before the code is checked; the update only matches
	// while attempts still holds the value read above, so concurrent guesses
	// cannot share one attempt
	claimed := append(phoneFilter(phone), store.Eq("attempts", row.Attempts))
	err = svc.store.Update(ctx, models.TableOTPCodes, claimed, map[string]interface{}{
		"attempts":   row.Attempts + 1,
		"updated_at": svc.now(),
	}, nil)
	if store.IsNotFound(err) {
		return nil, &session.AuthError{Status: http.StatusConflict, Code: "otp_attempt_in_progress", Message: "another verification attempt is in progress, try again"}
	}

	if err != nil {
		return nil, err
	}

	if !CheckCodeHash(code, row.CodeHash) {
		return nil, &session.AuthError{Status: http.StatusBadRequest, Code: "otp_invalid", Message: "invalid verification code"}
	}

	if err := svc.store.Delete(ctx, models.TableOTPCodes, phoneFilter(phone)); err != nil {
		return nil, err
	}

	user, err := svc.findOrCreateUser(ctx, phone)
	if err != nil {
		return nil, err
	}
	return svc.issueSession(user)
}

// Refresh exchanges a refresh token for a new session.
func (svc *OTPService) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	claims, err := DecodeJWT(refreshToken, svc.keyPair)
	if err != nil || claims.TokenUse != REFRESH_TOKEN {
		return nil, &session.AuthError{Status: http.StatusUnauthorized, Code: "invalid_refresh_token", Message: "invalid refresh token"}
	}

	user, err := svc.findUser(ctx, "id", claims.Subject)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, &session.AuthError{Status: http.StatusUnauthorized, Code: "user_not_found", Message: "user no longer exists"}
	}
	return svc.issueSession(user)
}

// VerifyToken resolves an access token to its user.
func (svc *OTPService) VerifyToken(ctx context.Context, accessToken string) (*session.ProviderUser, error) {
	claims, err := DecodeJWT(accessToken, svc.keyPair)
	if err != nil || claims.TokenUse != ACCESS_TOKEN {
		return nil, &session.AuthError{Status: http.StatusUnauthorized, Code: "invalid_token", Message: "invalid token provided"}
	}

	// validate that the user account still exists
	user, err := svc.findUser(ctx, "id", claims.Subject)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, &session.AuthError{Status: http.StatusUnauthorized, Code: "invalid_token", Message: "invalid token provided"}
	}

	pu := providerUser(*user)
	return &pu, nil
}

// PurgeExpiredCodes deletes the codes that expired before now and returns how
// many there were.
func (svc *OTPService) PurgeExpiredCodes(ctx context.Context) (int, error) {
	rows := []models.OTPCodeRow{}
	_, err := svc.store.Select(ctx, models.TableOTPCodes, store.Query{}, &rows)
	if err != nil {
		return 0, err
	}

	purged := 0
	now := svc.now()
	for _, row := range rows {
		if !now.After(row.ExpiresAt) {
			continue
		}

		if err := svc.store.Delete(ctx, models.TableOTPCodes, phoneFilter(row.Phone)); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func (svc *OTPService) findOrCreateUser(ctx context.Context, phone string) (*models.UserRow, error) {
	user, err := svc.findUser(ctx, "phone", phone)
	if err != nil || user != nil {
		return user, err
	}

	now := svc.now()
	row := &models.UserRow{
		ID:         uuid.NewString(),
		Phone:      phone,
		Timestamps: models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	created := models.UserRow{}
	err = svc.store.Insert(ctx, models.TableUsers, row, &created)
	if store.IsConflict(err) {
		// signed in concurrently from another device
		return svc.findUser(ctx, "phone", phone)
	}

	if err != nil {
		return nil, err
	}

	logg.Infof("created user %v for %v", created.ID, utils.MaskPhone(phone))
	return &created, nil
}

func (svc *OTPService) findUser(ctx context.Context, column string, value string) (*models.UserRow, error) {
	user := models.UserRow{}
	err := svc.store.SelectOne(ctx, models.TableUsers, []store.Filter{store.Eq(column, value)}, &user)
	if store.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (svc *OTPService) issueSession(user *models.UserRow) (*session.Session, error) {
	now := svc.now()
	accessExpiry := now.Add(ACCESS_TOKEN_TTL)

	accessToken, err := svc.token(user, ACCESS_TOKEN, now, accessExpiry)
	if err != nil {
		return nil, err
	}

	refreshToken, err := svc.token(user, REFRESH_TOKEN, now, now.Add(REFRESH_TOKEN_TTL))
	if err != nil {
		return nil, err
	}

	return &session.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    accessExpiry,
		User:         providerUser(*user),
	}, nil
}

func (svc *OTPService) token(user *models.UserRow, use string, issuedAt time.Time, expiresAt time.Time) (string, error) {
	return EncodeJWT(ReliefTokenClaims{
		Phone:    user.Phone,
		Name:     models.StringValue(user.FullName),
		TokenUse: use,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
			Issuer:    "relief",
		},
	}, svc.keyPair)
}

func providerUser(user models.UserRow) session.ProviderUser {
	metadata := map[string]interface{}{}
	if user.FullName != nil {
		metadata["full_name"] = *user.FullName
	}

	return session.ProviderUser{
		ID:           user.ID,
		Phone:        user.Phone,
		Email:        models.StringValue(user.Email),
		UserMetadata: metadata,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func phoneFilter(phone string) []store.Filter {
	return []store.Filter{store.Eq("phone", phone)}
}

// generateCode returns OTP_LENGTH random digits.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < OTP_LENGTH; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTP_LENGTH, n.Int64()), nil
}
