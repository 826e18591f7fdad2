package services

import (
	"context"
	"testing"
	"time"

	"market-chat/auth"
	"market-chat/errors"

	"github.com/stretchr/testify/require"
)

func newTestTokens() auth.Tokens {
	return auth.NewTokens("service-test-secret-2026", time.Hour)
}

func Test_Register_Then_Login(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	token, err := f.authn.Register("alice@example.com", "ComplexPass123!", "Alice Martin", []string{"requester"})
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := newTestTokens().Validate(string(token))
	req.NoError(err)
	req.Equal("Alice Martin", claims.FullName)
	req.Equal([]string{"requester"}, claims.Roles)

	loginToken, err := f.authn.Login("alice@example.com", "ComplexPass123!")
	req.NoError(err)
	loginClaims, err := newTestTokens().Validate(string(loginToken))
	req.NoError(err)
	req.Equal(claims.UserID, loginClaims.UserID)
}

func Test_Register_Weak_Password(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Long enough yet missing digits and specials: the complexity rule
	_, err := f.authn.Register("alice@example.com", "weakpasswordonly", "Alice Martin", []string{"requester"})
	req.ErrorIs(err, errors.ErrInvalidPassword)

	// Too short altogether: the shape rules
	_, err = f.authn.Register("alice@example.com", "Short1!", "Alice Martin", []string{"requester"})
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_Register_Malformed_Input(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.authn.Register("notanemail", "ComplexPass123!", "Alice Martin", []string{"requester"})
	req.ErrorIs(err, errors.ErrValidation)
	req.NotErrorIs(err, errors.ErrInvalidPassword)

	_, err = f.authn.Register("alice@example.com", "ComplexPass123!", "Alice Martin", []string{"admin"})
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_Register_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.authn.Register("alice@example.com", "ComplexPass123!", "Alice Martin", []string{"requester"})
	req.NoError(err)
	_, err = f.authn.Register("alice@example.com", "ComplexPass123!", "Alice Imposter", []string{"requester"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Login_Wrong_Password(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.authn.Register("alice@example.com", "ComplexPass123!", "Alice Martin", []string{"requester"})
	req.NoError(err)

	_, err = f.authn.Login("alice@example.com", "WrongPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	_, err = f.authn.Login("unknown@example.com", "ComplexPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func Test_Update_Profile_Broadcasts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, aliceConn := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	bobID, bobConn := f.registerUser(t, "bob@example.com", "Bob Durand", []string{"responder"})

	profile, err := f.directory.UpdateProfile(ctx, bobID, "Bob Durand", "Back next week", false)
	req.NoError(err)
	req.False(profile.IsAvailable)

	// Everyone online hears about it, including Bob himself
	req.Contains(aliceConn.NamesSeen(), "profile-updated")
	req.Contains(bobConn.NamesSeen(), "profile-updated")

	responders, err := f.directory.AvailableResponders()
	req.NoError(err)
	req.Empty(responders)
}
