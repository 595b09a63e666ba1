package auth

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/domain/user"
	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/httputil"
	"github.com/threadsclone/backend/internal/mailer"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/storage"
)

func (r *Resolver) Register(ctx context.Context, args struct{ Input RegisterInput }) (*AuthPayloadResolver, error) {
	if err := r.authLimit.Check(ctx, httputil.ClientIPFromContext(ctx)); err != nil {
		return nil, err
	}

	in := args.Input
	reg := user.Registration{
		Email:    in.Email,
		Username: in.Username,
		Password: in.Password,
		FullName: in.FullName,
		Bio:      deref(in.Bio),
		Avatar:   deref(in.Avatar),
	}.Normalize()
	if err := user.ValidateRegistration(reg); err != nil {
		return nil, err
	}
	if err := r.ensureAvailable(ctx, "", &reg.Email, &reg.Username); err != nil {
		return nil, err
	}

	hash, err := user.HashPassword(reg.Password)
	if err != nil {
		return nil, errors.Internal("hash password", err)
	}
	verification, err := user.NewSecretToken()
	if err != nil {
		return nil, errors.Internal("verification token", err)
	}

	u, err := r.stores.Users.CreateUser(ctx, user.New(reg, hash, verification, r.now()))
	if stderrors.Is(err, storage.ErrConflict) {
		return nil, errors.Validation("User already exists")
	}
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}

	r.send(ctx, mailer.VerificationEmail(r.frontendURL, u.Email, verification))
	r.logger.WithContext(ctx).WithField("user_id", u.ID).Info("User registered")

	return r.session(ctx, u)
}

func (r *Resolver) Login(ctx context.Context, args struct{ Input LoginInput }) (*AuthPayloadResolver, error) {
	if err := r.authLimit.Check(ctx, httputil.ClientIPFromContext(ctx)); err != nil {
		return nil, err
	}

	u, err := r.stores.Users.GetUserByEmail(ctx, user.NormalizeEmail(args.Input.Email))
	if stderrors.Is(err, storage.ErrNotFound) {
		r.logger.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"reason": "unknown_email"})
		return nil, errors.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}
	if !user.CheckPassword(u.PasswordHash, args.Input.Password) {
		r.logger.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"user_id": u.ID, "reason": "password"})
		return nil, errors.Unauthenticated("Invalid credentials")
	}

	u, _ = user.Touch(u, r.now())
	if u, err = r.stores.Users.UpdateUser(ctx, u); err != nil {
		return nil, graph.StoreError(err, "User")
	}
	return r.session(ctx, u)
}

func (r *Resolver) session(ctx context.Context, u user.User) (*AuthPayloadResolver, error) {
	tok, err := r.codec.Issue(u.ID)
	if err != nil {
		return nil, errors.Internal("issue token", err)
	}
	return &AuthPayloadResolver{
		token: tok,
		user:  r.models.User(u),
	}, nil
}

func (r *Resolver) UpdateProfile(ctx context.Context, args struct{ Input UpdateProfileInput }) (*graph.UserResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	update := user.ProfileUpdate{
		Email:    args.Input.Email,
		Username: args.Input.Username,
		FullName: args.Input.FullName,
		Bio:      args.Input.Bio,
		Avatar:   args.Input.Avatar,
	}
	if err := user.ValidateProfile(update); err != nil {
		return nil, err
	}

	current, err := r.stores.Users.GetUser(ctx, p.ID)
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}

	var email, username *string
	if update.Email != nil {
		v := user.NormalizeEmail(*update.Email)
		email = &v
	}
	if update.Username != nil {
		v := strings.TrimSpace(*update.Username)
		username = &v
	}
	if err := r.ensureAvailable(ctx, current.ID, email, username); err != nil {
		return nil, err
	}

	updated, intent := user.ApplyProfile(current, update, r.now())
	if intent == domain.NoChange {
		return r.models.User(current), nil
	}
	updated, err = r.stores.Users.UpdateUser(ctx, updated)
	if stderrors.Is(err, storage.ErrConflict) {
		return nil, errors.Validation("Username or email already taken")
	}
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}

	r.publish(ctx, pubsub.UserUpdated(updated.ID), updated)
	return r.models.User(updated), nil
}

// ensureAvailable rejects an email or username held by an account other
// than selfID. Nil values are not checked.
func (r *Resolver) ensureAvailable(ctx context.Context, selfID string, email, username *string) error {
	if email != nil {
		existing, err := r.stores.Users.GetUserByEmail(ctx, *email)
		if err == nil && existing.ID != selfID {
			return errors.Validation("Email already taken").WithDetails("field", "email")
		}
		if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			return graph.StoreError(err, "User")
		}
	}
	if username != nil {
		existing, err := r.stores.Users.GetUserByUsername(ctx, *username)
		if err == nil && existing.ID != selfID {
			return errors.Validation("Username already taken").WithDetails("field", "username")
		}
		if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			return graph.StoreError(err, "User")
		}
	}
	return nil
}

// FollowUser adds the follower edge and publishes the followed user, whose
// follower list now includes the caller. Repeating it is a no-op that
// neither publishes nor notifies again.
func (r *Resolver) FollowUser(ctx context.Context, args UserArgs) (*graph.UserResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	targetID := string(args.UserID)
	if targetID == p.ID {
		return nil, errors.Validation("You cannot follow yourself")
	}

	target, err := r.stores.Users.GetUser(ctx, targetID)
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}
	if _, err := r.stores.Users.GetUser(ctx, p.ID); err != nil {
		return nil, graph.StoreError(err, "User")
	}

	changed, err := r.stores.Follows.Follow(ctx, p.ID, targetID)
	if err != nil {
		return nil, graph.StoreError(err, "Follow")
	}
	if changed {
		r.publish(ctx, pubsub.UserFollowed(targetID), target)
		r.notifier.Notify(ctx, notification.Notification{
			Type:        notification.Follow,
			RecipientID: targetID,
			SenderID:    p.ID,
		})
	}
	return r.models.User(target), nil
}

// UnfollowUser removes the follower edge if present.
func (r *Resolver) UnfollowUser(ctx context.Context, args UserArgs) (*graph.UserResolver, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return nil, err
	}
	targetID := string(args.UserID)

	target, err := r.stores.Users.GetUser(ctx, targetID)
	if err != nil {
		return nil, graph.StoreError(err, "User")
	}
	if _, err := r.stores.Users.GetUser(ctx, p.ID); err != nil {
		return nil, graph.StoreError(err, "User")
	}

	changed, err := r.stores.Follows.Unfollow(ctx, p.ID, targetID)
	if err != nil {
		return nil, graph.StoreError(err, "Follow")
	}
	if changed {
		r.publish(ctx, pubsub.UserUnfollowed(targetID), target)
	}
	return r.models.User(target), nil
}

func (r *Resolver) VerifyEmail(ctx context.Context, args struct{ Token string }) (bool, error) {
	tok := strings.TrimSpace(args.Token)
	if tok == "" {
		return false, errors.Validation("Invalid verification token")
	}
	u, err := r.stores.Users.GetUserByVerificationToken(ctx, tok)
	if stderrors.Is(err, storage.ErrNotFound) {
		return false, errors.Validation("Invalid verification token")
	}
	if err != nil {
		return false, graph.StoreError(err, "User")
	}

	u, intent := user.MarkVerified(u, r.now())
	if intent == domain.Update {
		if u, err = r.stores.Users.UpdateUser(ctx, u); err != nil {
			return false, graph.StoreError(err, "User")
		}
		r.publish(ctx, pubsub.UserUpdated(u.ID), u)
	}
	return true, nil
}

// ForgotPassword answers true whether or not the address is registered so
// that it cannot be used to probe for accounts.
func (r *Resolver) ForgotPassword(ctx context.Context, args struct{ Email string }) (bool, error) {
	if err := r.resetLimit.Check(ctx, httputil.ClientIPFromContext(ctx)); err != nil {
		return false, err
	}
	email := user.NormalizeEmail(args.Email)
	if err := user.ValidateEmail(email); err != nil {
		return false, err
	}

	u, err := r.stores.Users.GetUserByEmail(ctx, email)
	if stderrors.Is(err, storage.ErrNotFound) {
		r.logger.WithContext(ctx).Debug("Password reset requested for unknown email")
		return true, nil
	}
	if err != nil {
		return false, graph.StoreError(err, "User")
	}

	resetToken, err := user.NewSecretToken()
	if err != nil {
		return false, errors.Internal("reset token", err)
	}
	u, _ = user.IssueReset(u, resetToken, r.now())
	if _, err := r.stores.Users.UpdateUser(ctx, u); err != nil {
		return false, graph.StoreError(err, "User")
	}

	msg := mailer.PasswordResetEmail(r.frontendURL, u.Email, resetToken, user.ResetTokenTTL)
	if err := r.mailer.Send(ctx, msg); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", u.ID).Error("Failed to send password reset email")
		return false, errors.Unavailable("Error sending reset email")
	}
	return true, nil
}

func (r *Resolver) ResetPassword(ctx context.Context, args struct{ Token, Password string }) (bool, error) {
	if err := r.resetLimit.Check(ctx, httputil.ClientIPFromContext(ctx)); err != nil {
		return false, err
	}
	if err := user.ValidatePassword(args.Password); err != nil {
		return false, err
	}

	tok := strings.TrimSpace(args.Token)
	invalid := errors.Validation("Invalid or expired reset token")
	if tok == "" {
		return false, invalid
	}
	u, err := r.stores.Users.GetUserByResetToken(ctx, tok)
	if stderrors.Is(err, storage.ErrNotFound) {
		return false, invalid
	}
	if err != nil {
		return false, graph.StoreError(err, "User")
	}
	now := r.now()
	if !user.ResetValid(u, tok, now) {
		return false, invalid
	}

	hash, err := user.HashPassword(args.Password)
	if err != nil {
		return false, errors.Internal("hash password", err)
	}
	u, _ = user.CompleteReset(u, hash, now)
	if _, err := r.stores.Users.UpdateUser(ctx, u); err != nil {
		return false, graph.StoreError(err, "User")
	}
	r.logger.LogSecurityEvent(ctx, "password_reset", map[string]interface{}{"user_id": u.ID})
	return true, nil
}

// DeleteAccount removes the caller and their follower edges. Content they
// authored stays and is attributed to a placeholder user.
func (r *Resolver) DeleteAccount(ctx context.Context) (bool, error) {
	p, err := principal.Require(ctx)
	if err != nil {
		return false, err
	}
	if _, err := r.stores.Users.GetUser(ctx, p.ID); err != nil {
		return false, graph.StoreError(err, "User")
	}
	if err := r.stores.Users.DeleteUser(ctx, p.ID); err != nil {
		return false, graph.StoreError(err, "User")
	}
	r.logger.LogSecurityEvent(ctx, "account_deleted", map[string]interface{}{"user_id": p.ID})
	return true, nil
}

func (r *Resolver) publish(ctx context.Context, topic string, u user.User) {
	if err := r.publisher.Publish(ctx, topic, user.Redact(u)); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("topic", topic).Warn("Failed to publish user event")
	}
}

// send delivers mail on a best-effort basis.
func (r *Resolver) send(ctx context.Context, msg mailer.Message) {
	if err := r.mailer.Send(ctx, msg); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("subject", msg.Subject).Error("Failed to send email")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
