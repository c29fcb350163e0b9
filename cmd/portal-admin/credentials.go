package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jemaat/portal/internal/bootstrap"
	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/ports"
)

const (
	defaultCredentialTimeout = 10 * time.Second
	// passwordEnv lets scripts pass the password of check-login without a prompt.
	passwordEnv = "PORTAL_ADMIN_PASSWORD"
)

func runClearCredential(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("usage: clear-credential <client-id>")
	}
	clientID := strings.TrimSpace(args[0])

	return withRedis(cmdCtx, defaultCredentialTimeout, func(ctx context.Context, client redis.UniversalClient) error {
		stores := bootstrap.BuildStores(bootstrap.StoreConfig{
			Auth:        cmdCtx.Config.Auth,
			Cache:       cmdCtx.Config.Cache,
			RedisClient: client,
			Logger:      cmdCtx.Logger,
		})
		return clearCredential(ctx, stores.Credentials, clientID, cmdCtx.Out)
	})
}

func clearCredential(ctx context.Context, store ports.CredentialStore, clientID string, out io.Writer) error {
	if err := store.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return writef(out, "Cleared stored credential of client %s. Its next request starts signed out.\n", clientID)
}

type checkLoginOptions struct {
	Email string
}

func runCheckLogin(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("check-login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var opts checkLoginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return errors.New("--email is required")
	}

	password, err := readPassword(cmdCtx)
	if err != nil {
		return err
	}

	backend, err := bootstrap.BuildBackend(bootstrap.BackendConfig{
		Auth:    cmdCtx.Config.Auth,
		Backend: cmdCtx.Config.Backend,
		Logger:  cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmdCtx.Ctx, cmdCtx.Config.Backend.Timeout+defaultCredentialTimeout)
	defer cancel()
	return checkLogin(ctx, backend, opts.Email, password, cmdCtx.Out)
}

func readPassword(cmdCtx *commandContext) (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	if err := write(cmdCtx.Out, "Password: "); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// checkLogin signs in, confirms the token with a profile lookup and signs out again.
func checkLogin(ctx context.Context, backend ports.Backend, email, password string, out io.Writer) error {
	res, err := backend.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer func() { _ = backend.Logout(ctx, res.Token) }()

	profile, err := backend.WhoAmI(ctx, res.Token)
	if err != nil {
		return fmt.Errorf("profile lookup: %w", err)
	}
	id := domainauth.NewIdentity(profile, res.Token)

	expires := "none"
	if !res.ExpiresAt.IsZero() {
		expires = res.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return writef(out, "id:       %s\nname:     %s\nemail:    %s\nraw role: %q\nrole:     %s\nlanding:  %s\nexpires:  %s\n",
		id.ID, id.DisplayName, id.Email, id.RawRole, id.Role, domainauth.LandingPath(id.Role), expires)
}
