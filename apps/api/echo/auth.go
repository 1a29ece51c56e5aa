package echoapi

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/user"
)

const (
	contextTokenKey = "token"
	contextUserKey  = "user"
	tokenAudience   = "ReviewDesk"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsReviewer   bool     `json:"is_reviewer,omitempty"` // -> REVIEW PORTAL
	IsAdmin      bool     `json:"is_admin,omitempty"`    // -> ADMIN PORTAL
	Roles        []string `json:"roles,omitempty"`
	Sections     []string `json:"sections,omitempty"`
}

// tokenizer signs and verifies HS256 tokens with the app secret.
type tokenizer struct {
	key               []byte
	issuer            string
	expiration        time.Duration
	refreshExpiration time.Duration
}

func newTokenizer(conf *core.Config) tokenizer {
	return tokenizer{
		key:               []byte(conf.SecretKey),
		issuer:            conf.AppName,
		expiration:        conf.Server.JWTExpirationDelta,
		refreshExpiration: conf.Server.JWTRefreshExpirationDelta,
	}
}

func (tk tokenizer) Claims(usr user.User, origIat ...int64) *Claims {
	now := core.NowFunc()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tk.issuer,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(tk.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsReviewer:   usr.IsReviewer(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
		Sections:     usr.Sections,
	}
}

// Sign generates a signed JWT token string representing the user Claims.
func (tk tokenizer) Sign(claims *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tk.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (tk tokenizer) Parse(token string) (*Claims, error) {
	t, err := tk.parseToken(token)
	if err != nil {
		return nil, err
	}
	return t.Claims.(*Claims), nil
}

func (tk tokenizer) parseToken(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, new(Claims),
		func(*jwt.Token) (interface{}, error) { return tk.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(tk.issuer),
		jwt.WithTimeFunc(core.NowFunc),
	)
}

// middleware verifies the bearer token and stores it in the context.
func (tk tokenizer) middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:    contextTokenKey,
		SigningKey:    tk.key,
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		TokenLookup:   "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(Claims) },
		ParseTokenFunc: func(_ echo.Context, auth string) (interface{}, error) {
			return tk.parseToken(auth)
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			var perr *echojwt.TokenParsingError
			if errors.As(err, &perr) {
				return errInvalidToken.WithInternal(err)
			}
			return errMissingToken.WithInternal(err)
		},
	})
}

func (tk tokenizer) authenticate(ctx context.Context, uname, pwd string, svc *user.Service) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return tk.Claims(usr), nil
}

func (tk tokenizer) refresh(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(tk.refreshExpiration)
	if core.NowFunc().After(expTime) {
		return "", errRefreshExpired
	}
	return tk.Sign(tk.Claims(usr, claims.OrigIssuedAt))
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}

// getContextUser loads the token's user once per request.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// mustContextUser returns the user set by activeUserMiddleware.
func mustContextUser(ctx echo.Context) user.User {
	usr, _ := ctx.Get(contextUserKey).(user.User)
	return usr
}
