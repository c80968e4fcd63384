package cli

import (
	"context"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and authenticates against the
// remote store. The password buffer is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer clear(password)

	u, err := a.auth.Login(ctx, userName, string(password))
	if err != nil {
		a.log.Warn(ctx, "login unsuccessful", "username", userName, "err", err)
		return err
	}

	a.setUser(u.Username)
	a.printf("Logged in as %s\n", u.Username)
	return nil
}

// Logout forgets the stored session. Local entries and the sync queues stay
// in place and are pushed after the next login.
func (a *App) Logout(ctx context.Context) error {
	a.auth.Logout(ctx)
	a.setUser("")
	a.printf("Logged out\n")
	return nil
}
