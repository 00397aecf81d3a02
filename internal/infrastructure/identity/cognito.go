// Package identity implements the identity provider contract on top of AWS
// Cognito user pools, using the client-side flows only (USER_PASSWORD_AUTH
// and REFRESH_TOKEN_AUTH); no admin credentials are required.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
)

const defaultCallTimeout = 10 * time.Second

// cognitoAPI is the subset of the Cognito client this provider calls.
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, in *cognito.InitiateAuthInput, opts ...func(*cognito.Options)) (*cognito.InitiateAuthOutput, error)
	SignUp(ctx context.Context, in *cognito.SignUpInput, opts ...func(*cognito.Options)) (*cognito.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cognito.ConfirmSignUpInput, opts ...func(*cognito.Options)) (*cognito.ConfirmSignUpOutput, error)
	ForgotPassword(ctx context.Context, in *cognito.ForgotPasswordInput, opts ...func(*cognito.Options)) (*cognito.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, in *cognito.ConfirmForgotPasswordInput, opts ...func(*cognito.Options)) (*cognito.ConfirmForgotPasswordOutput, error)
}

// CognitoProvider implements ports.IdentityProvider against a Cognito user
// pool app client.
type CognitoProvider struct {
	client   cognitoAPI
	clientID string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewCognitoProvider loads the default AWS configuration for region and
// returns a provider bound to the given app client id.
func NewCognitoProvider(ctx context.Context, region, clientID string, timeout time.Duration, log zerolog.Logger) (*CognitoProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &CognitoProvider{
		client:   cognito.NewFromConfig(cfg),
		clientID: clientID,
		timeout:  timeout,
		log:      log,
	}, nil
}

func (p *CognitoProvider) Authenticate(ctx context.Context, username, password string) (*ports.AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.InitiateAuth(ctx, &cognito.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, p.mapError("authenticate", err)
	}
	if out.AuthenticationResult == nil {
		return nil, fmt.Errorf("authenticate: %w: empty authentication result", domain.ErrProvider)
	}

	res := out.AuthenticationResult
	return &ports.AuthResult{
		Username:     username,
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresIn:    time.Duration(res.ExpiresIn) * time.Second,
	}, nil
}

func (p *CognitoProvider) SignUp(ctx context.Context, username, email, password string) (*ports.SignUpResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.SignUp(ctx, &cognito.SignUpInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(username),
		Password: aws.String(password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
		},
	})
	if err != nil {
		return nil, p.mapError("sign up", err)
	}

	return &ports.SignUpResult{
		UserSub:   aws.ToString(out.UserSub),
		Confirmed: out.UserConfirmed,
	}, nil
}

func (p *CognitoProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.ConfirmSignUp(ctx, &cognito.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return p.mapError("confirm sign up", err)
	}
	return nil
}

// Refresh exchanges a refresh token for a new access token. Cognito reports a
// dead refresh token as NotAuthorizedException, which maps to
// domain.ErrRefreshInvalid here so the store knows to log out rather than
// retry.
func (p *CognitoProvider) Refresh(ctx context.Context, refreshToken string) (*ports.AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.InitiateAuth(ctx, &cognito.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "NotAuthorizedException" {
			return nil, fmt.Errorf("refresh: %w", domain.ErrRefreshInvalid)
		}
		return nil, p.mapError("refresh", err)
	}
	if out.AuthenticationResult == nil {
		return nil, fmt.Errorf("refresh: %w: empty authentication result", domain.ErrProvider)
	}

	res := out.AuthenticationResult
	return &ports.AuthResult{
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresIn:    time.Duration(res.ExpiresIn) * time.Second,
	}, nil
}

func (p *CognitoProvider) ForgotPassword(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.ForgotPassword(ctx, &cognito.ForgotPasswordInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(username),
	})
	if err != nil {
		return p.mapError("forgot password", err)
	}
	return nil
}

func (p *CognitoProvider) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.ConfirmForgotPassword(ctx, &cognito.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
	})
	if err != nil {
		return p.mapError("confirm forgot password", err)
	}
	return nil
}

// mapError translates Cognito error codes into the domain taxonomy.
// Auth-semantic failures keep their meaning; everything else, including
// transport errors, collapses into ErrProvider and is never retried here.
func (p *CognitoProvider) mapError(op string, err error) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		p.log.Warn().Err(err).Str("op", op).Msg("cognito call failed")
		return fmt.Errorf("%s: %w: %v", op, domain.ErrProvider, err)
	}

	var mapped error
	switch ae.ErrorCode() {
	case "NotAuthorizedException":
		mapped = domain.ErrInvalidCredentials
	case "UserNotConfirmedException":
		mapped = domain.ErrUnconfirmedAccount
	case "UsernameExistsException":
		mapped = domain.ErrUsernameTaken
	case "InvalidPasswordException":
		mapped = domain.ErrWeakPassword
	case "CodeMismatchException":
		mapped = domain.ErrInvalidCode
	case "ExpiredCodeException":
		mapped = domain.ErrCodeExpired
	case "InvalidParameterException":
		mapped = domain.ErrValidation
	default:
		p.log.Warn().Str("op", op).Str("code", ae.ErrorCode()).Str("message", ae.ErrorMessage()).Msg("unmapped cognito error")
		mapped = domain.ErrProvider
	}
	return fmt.Errorf("%s: %w", op, mapped)
}
