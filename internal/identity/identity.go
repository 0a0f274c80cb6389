// Package identity manages user accounts: registration, password sign-in,
// email verification, password reset, and external identity upserts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"linkfolio/internal/apperr"
	"linkfolio/internal/biopages"
	"linkfolio/internal/credentials"
	applog "linkfolio/internal/log"
	"linkfolio/internal/mail"
	"linkfolio/internal/validate"
	"linkfolio/models"
)

const (
	VerificationTTL  = 24 * time.Hour
	PasswordResetTTL = time.Hour
	maxNameLength    = 100
)

var (
	// ErrInvalidCredentials does not reveal whether the account exists.
	ErrInvalidCredentials = apperr.Unauthenticated("invalid email or password")
	// ErrNeedsVerification is returned to a correct sign-in on an unverified account.
	ErrNeedsVerification = apperr.Forbidden("please verify your email address before signing in")
	// ErrInvalidToken covers unknown, mismatched and expired tokens alike.
	ErrInvalidToken = apperr.Validation("invalid or expired token", nil)
	// ErrEmailTaken is returned when registering an address that already has an account.
	ErrEmailTaken = apperr.Validation("email already registered", map[string]string{"email": "an account with this email already exists"})
)

// Service implements account operations.
type Service struct {
	db      *gorm.DB
	hasher  credentials.Hasher
	pages   *biopages.Registry
	mailer  mail.Mailer
	baseURL string
	now     func() time.Time
}

func New(db *gorm.DB, hasher credentials.Hasher, pages *biopages.Registry, mailer mail.Mailer, baseURL string) *Service {
	if mailer == nil {
		mailer = mail.LogSender{}
	}
	return &Service{
		db:      db,
		hasher:  hasher,
		pages:   pages,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(errs validate.Errors, field, password string) {
	errs.Check(len(password) >= credentials.MinPasswordLength, field, "password must be at least 8 characters long")
	errs.Check(len(password) <= 72, field, "password must be at most 72 bytes long")
}

func checkName(errs validate.Errors, field string, name *string) {
	if name != nil {
		errs.Check(validate.Length(*name, 0, maxNameLength), field, "must be at most 100 characters")
	}
}

func (s *Service) findByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	user := &models.User{}
	err := tx.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).Take(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *Service) findByToken(ctx context.Context, tx *gorm.DB, column, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if len(token) != credentials.TokenLength {
		return nil, ErrInvalidToken
	}
	user := &models.User{}
	err := tx.WithContext(ctx).Where(column+" = ?", token).Take(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find user by token: %w", err)
	}
	return user, nil
}

func (s *Service) expired(expires *time.Time) bool {
	return expires == nil || !s.now().Before(*expires)
}

func (s *Service) send(ctx context.Context, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		applog.Error(ctx, "failed to send email", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Registration holds the fields accepted at sign-up.
type Registration struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// Register creates an unverified account and mails a verification link.
func (s *Service) Register(ctx context.Context, in Registration) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	errs := validate.Errors{}
	errs.Check(validate.Email(email), "email", "a valid email address is required")
	checkPassword(errs, "password", in.Password)
	checkName(errs, "firstName", in.FirstName)
	checkName(errs, "lastName", in.LastName)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	existing, err := s.findByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	token, err := credentials.GenerateToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(VerificationTTL)

	user := &models.User{
		Email:                    email,
		PasswordHash:             &digest,
		FirstName:                trimmed(in.FirstName),
		LastName:                 trimmed(in.LastName),
		EmailVerificationToken:   &token,
		EmailVerificationExpires: &expires,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	applog.Info(ctx, "user registered", "user_id", user.ID)
	s.send(ctx, mail.VerificationMessage(s.baseURL, user.Email, user.DisplayName(), token))
	return user, nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	return models.StringPtr(*p)
}

// Authenticate checks a password sign-in. Unknown emails, accounts without a
// password and wrong passwords all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.findByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Compare(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, ErrNeedsVerification
	}
	return user, nil
}

// VerifyEmail marks the account owning token as verified. The user's first
// page is created before the token is cleared, in the same transaction, so a
// failure leaves the token valid for another attempt.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.findByToken(ctx, tx, "email_verification_token", token)
		if err != nil {
			return err
		}
		if s.expired(found.EmailVerificationExpires) {
			return ErrInvalidToken
		}

		if _, err := s.pages.WithTx(tx).EnsureInitialPage(ctx, found); err != nil {
			return fmt.Errorf("create initial page: %w", err)
		}

		if err := tx.Model(found).Updates(map[string]any{
			"email_verified":             true,
			"email_verification_token":   nil,
			"email_verification_expires": nil,
		}).Error; err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		found.EmailVerified = true
		found.EmailVerificationToken = nil
		found.EmailVerificationExpires = nil
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	applog.Info(ctx, "email verified", "user_id", user.ID)
	return user, nil
}

// ResendVerification rotates the verification token and mails it again.
// Unknown and already verified addresses are ignored.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, s.db, email)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		applog.Debug(ctx, "verification resend skipped", "known", user != nil)
		return nil
	}

	token, err := credentials.GenerateToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(VerificationTTL)
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"email_verification_token":   token,
		"email_verification_expires": expires,
	}).Error; err != nil {
		return fmt.Errorf("rotate verification token: %w", err)
	}

	s.send(ctx, mail.VerificationMessage(s.baseURL, user.Email, user.DisplayName(), token))
	return nil
}

// RequestPasswordReset mails a single-use reset link. Unknown addresses and
// accounts without a password are ignored.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, s.db, email)
	if err != nil {
		return err
	}
	if user == nil || !user.HasPassword() {
		applog.Debug(ctx, "password reset skipped", "known", user != nil)
		return nil
	}

	token, err := credentials.GenerateToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(PasswordResetTTL)
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"password_reset_token":   token,
		"password_reset_expires": expires,
	}).Error; err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.send(ctx, mail.PasswordResetMessage(s.baseURL, user.Email, user.DisplayName(), token))
	return nil
}

// ResetPassword sets a new password for the account owning token and clears the token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error) {
	errs := validate.Errors{}
	checkPassword(errs, "newPassword", newPassword)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.findByToken(ctx, tx, "password_reset_token", token)
		if err != nil {
			return err
		}
		if s.expired(found.PasswordResetExpires) {
			return ErrInvalidToken
		}
		digest, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		if err := tx.Model(found).Updates(map[string]any{
			"password_hash":          digest,
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		}).Error; err != nil {
			return fmt.Errorf("reset password: %w", err)
		}
		found.PasswordHash = &digest
		found.PasswordResetToken = nil
		found.PasswordResetExpires = nil
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	applog.Info(ctx, "password reset", "user_id", user.ID)
	return user, nil
}

// ChangePassword replaces the password of a signed-in user. Accounts created
// through an external provider may set a first password without a current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	errs := validate.Errors{}
	checkPassword(errs, "newPassword", next)
	if user.HasPassword() {
		errs.Check(s.hasher.Compare(*user.PasswordHash, current), "currentPassword", "current password is incorrect")
	}
	if err := errs.Err(); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", digest).Error; err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// AccountPatch is a partial update of the caller's own account.
type AccountPatch struct {
	FirstName       *string `json:"firstName"`
	LastName        *string `json:"lastName"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

// UpdateAccount applies patch to the user's own record.
func (s *Service) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (*models.User, error) {
	errs := validate.Errors{}
	updates := map[string]any{}
	if patch.FirstName != nil {
		checkName(errs, "firstName", patch.FirstName)
		updates["first_name"] = models.StringPtr(*patch.FirstName)
	}
	if patch.LastName != nil {
		checkName(errs, "lastName", patch.LastName)
		updates["last_name"] = models.StringPtr(*patch.LastName)
	}
	if patch.ProfileImageURL != nil {
		image := models.StringPtr(*patch.ProfileImageURL)
		if image != nil {
			errs.Check(validate.WebURL(*image), "profileImageUrl", "image must be an http or https URL")
		}
		updates["profile_image_url"] = image
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, apperr.NotFound("user not found")
		}
	}
	return s.Get(ctx, id)
}

// ExternalIdentity is a profile asserted by an external identity provider.
type ExternalIdentity struct {
	Email     string
	FirstName string
	LastName  string
	ImageURL  string
}

// UpsertExternal creates or refreshes an account from an external identity
// provider. Such accounts are verified on creation and have no password. The
// user's initial page is ensured in the same transaction.
func (s *Service) UpsertExternal(ctx context.Context, in ExternalIdentity) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if !validate.Email(email) {
		return nil, apperr.Validation("validation failed", map[string]string{"email": "a valid email address is required"})
	}

	// Provider images are advisory; one the pages would reject is dropped.
	image := models.StringPtr(in.ImageURL)
	if image != nil && !validate.WebURL(*image) {
		applog.Warn(ctx, "ignoring external identity image", "email", email, "image_url", *image)
		image = nil
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.findByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if found == nil {
			found = &models.User{
				Email:           email,
				FirstName:       models.StringPtr(in.FirstName),
				LastName:        models.StringPtr(in.LastName),
				ProfileImageURL: image,
				EmailVerified:   true,
			}
			if err := tx.Create(found).Error; err != nil {
				return fmt.Errorf("create external user: %w", err)
			}
		} else {
			updates := map[string]any{"email_verified": true}
			if v := models.StringPtr(in.FirstName); v != nil {
				updates["first_name"] = v
				found.FirstName = v
			}
			if v := models.StringPtr(in.LastName); v != nil {
				updates["last_name"] = v
				found.LastName = v
			}
			if image != nil {
				updates["profile_image_url"] = image
				found.ProfileImageURL = image
			}
			if err := tx.Model(found).Updates(updates).Error; err != nil {
				return fmt.Errorf("refresh external user: %w", err)
			}
			found.EmailVerified = true
		}

		if _, err := s.pages.WithTx(tx).EnsureInitialPage(ctx, found); err != nil {
			return fmt.Errorf("create initial page: %w", err)
		}
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
