package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/token"
)

// TwoFactorFailure names the branch a bridge redemption ended in.
type TwoFactorFailure int

const (
	TwoFactorOK TwoFactorFailure = iota
	TwoFactorBadToken
	TwoFactorUnknownUser
	TwoFactorDeactivated
	TwoFactorLocked
	TwoFactorNotEnabled
	TwoFactorBadCode
	TwoFactorReplayed
	TwoFactorDependency
)

// TwoFactorOutcome is the result of RunTwoFactor.
type TwoFactorOutcome struct {
	Failure TwoFactorFailure
	Err     error
	Claims  *token.Claims
	User    *LoginUser
}

// TwoFactorDeps captures bridge redemption dependencies.
type TwoFactorDeps struct {
	Policy       lockout.Policy
	ConsumeToken bool
	Now          func() time.Time

	VerifyToken  func(ctx context.Context, bridgeToken string) (*token.Claims, error)
	LookupUser   func(ctx context.Context, userID string) (*LoginUser, error)
	ValidateCode func(secret, code string) bool
	Consume      func(ctx context.Context, claims *token.Claims) (bool, error)

	UserNotFound error
}

// RunTwoFactor redeems a two_factor bridge token with a one-time code. The
// token is consumed only after the code matched, so a mistyped code does
// not burn the challenge.
func RunTwoFactor(ctx context.Context, bridgeToken, code string, deps TwoFactorDeps) TwoFactorOutcome {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	claims, err := deps.VerifyToken(ctx, bridgeToken)
	if err != nil {
		if errors.Is(err, token.ErrRevocationUnavailable) {
			return TwoFactorOutcome{Failure: TwoFactorDependency, Err: err}
		}
		return TwoFactorOutcome{Failure: TwoFactorBadToken, Err: err}
	}

	user, err := deps.LookupUser(ctx, claims.UserID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return TwoFactorOutcome{Failure: TwoFactorUnknownUser, Claims: claims}
		}
		return TwoFactorOutcome{Failure: TwoFactorDependency, Err: err, Claims: claims}
	}
	out := TwoFactorOutcome{Claims: claims, User: user}

	switch {
	case !user.Active:
		out.Failure = TwoFactorDeactivated
		return out
	case deps.Policy.Status(user.Lockout, deps.Now()) == lockout.Locked:
		out.Failure = TwoFactorLocked
		return out
	case !user.Subject.TwoFactorEnabled || user.TwoFactorSecret == "":
		out.Failure = TwoFactorNotEnabled
		return out
	}

	if !validCodeShape(code) || !deps.ValidateCode(user.TwoFactorSecret, code) {
		out.Failure = TwoFactorBadCode
		return out
	}

	if deps.ConsumeToken && deps.Consume != nil {
		first, err := deps.Consume(ctx, claims)
		if err != nil {
			if errors.Is(err, token.ErrRevocationUnavailable) {
				out.Failure, out.Err = TwoFactorDependency, err
				return out
			}
			out.Failure, out.Err = TwoFactorBadToken, err
			return out
		}
		if !first {
			out.Failure = TwoFactorReplayed
			return out
		}
	}

	out.Failure = TwoFactorOK
	return out
}

func validCodeShape(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
