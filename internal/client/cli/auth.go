package cli

import (
	"context"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) readPassword() (string, error) {
	pw, err := getPassword(os.Stdout)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// Register prompts for name, email and password and creates an account.
// The new session replaces any current one.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", os.Stdout)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := a.readPassword()
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Register(ctx, name, email, password)
	if err != nil {
		printlnFn("Registration failed:", err)
		return err
	}

	a.session = res.User.Email
	printlnFn("Registered as", res.User.Email, "with role", res.User.Role)
	return nil
}

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := a.readPassword()
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.client.Login(ctx, email, password)
	if err != nil {
		printlnFn("Login unsuccessful:", err)
		return err
	}

	a.session = res.User.Email
	printlnFn("Logged in as", res.User.Name, "<"+res.User.Email+">", "role", res.User.Role)
	return nil
}

// Me prints the identity behind the current access token.
func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	me, err := a.client.Me(ctx)
	if err != nil {
		printlnFn("Error:", err)
		return err
	}
	printlnFn("id:", me.ID, "email:", me.Email, "role:", me.Role)
	return nil
}

// Refresh rotates the session tokens.
func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	tp, err := a.client.Refresh(ctx)
	if err != nil {
		printlnFn("Refresh failed:", err)
		return err
	}
	printlnFn("Tokens refreshed, access token valid until", tp.AccessTokenExpiresAt.Local().Format("15:04:05"))
	return nil
}

// Logout ends the current session.
func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.client.Logout(ctx)
	a.session = ""
	if err != nil {
		printlnFn("Logout:", err)
		return err
	}
	printlnFn("Logged out")
	return nil
}

// LogoutAll ends every session of the current user.
func (a *App) LogoutAll(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	n, err := a.client.LogoutAll(ctx)
	if err != nil {
		printlnFn("Error:", err)
		return err
	}
	a.session = ""
	printlnFn("Revoked", n, "session(s)")
	return nil
}
