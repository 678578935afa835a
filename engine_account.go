package hubauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/internal"
	"github.com/swahilipot/hubauth/internal/rate"
)

// Signup registers an account, stores a verification token, queues the
// verification email and logs the new account in.
//
// Reserved administrative addresses return ErrReservedEmail and registered
// ones ErrEmailTaken.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email, err := normalizeEmailInput(in.Email)
	if err != nil {
		return nil, err
	}
	// Reserved addresses are refused before any other field is looked at.
	if _, reserved := e.reserved[email]; reserved {
		e.metricInc(MetricSignupReserved)
		e.emitAudit(ctx, auditEventSignupFailure, 0, 0, false, ErrReservedEmail, nil)
		return nil, ErrReservedEmail
	}
	fullName := strings.TrimSpace(in.FullName)
	department := strings.TrimSpace(in.Department)
	if fullName == "" {
		return nil, invalid("Full name is required")
	}
	if utf8.RuneCountInString(fullName) > maxNameLength || utf8.RuneCountInString(department) > maxNameLength {
		return nil, invalid(fmt.Sprintf("Name and department must be at most %d characters", maxNameLength))
	}
	if err := e.checkPasswordPolicy(in.Password); err != nil {
		return nil, err
	}

	if err := e.allow(ctx, rate.ActionSignup, clientIPFromContext(ctx)); err != nil {
		return nil, err
	}

	hash, err := e.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	a, err := e.accounts.Create(ctx, account.NewAccount{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Department:   department,
		Role:         account.RoleUser,
		CreatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignupFailure, 0, 0, false, ErrEmailTaken, nil)
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	token, err := e.newVerificationToken(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	tokens, err := e.completeLogin(ctx, a)
	if err != nil {
		return nil, err
	}

	e.notifyErr(ctx, "verification", a.ID, e.notifier.SendVerification(ctx, a.Email, a.FullName, token))

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, a.ID, tokens.SessionID, true, nil, nil)

	return &SignupResult{User: userView(a), Tokens: tokens}, nil
}

// newVerificationToken replaces any outstanding verification token of
// accountID and returns the clear value.
func (e *Engine) newVerificationToken(ctx context.Context, accountID int64) (string, error) {
	token, err := internal.NewOpaqueToken(internal.OpaqueTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	now := e.clock()
	if err := e.accounts.SetVerificationToken(ctx, accountID, internal.HashToken(token), now.Add(e.config.EmailVerification.TokenTTL), now); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}
