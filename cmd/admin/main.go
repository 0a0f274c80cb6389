// Command admin runs operator tasks against the linkfolio database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"linkfolio/internal/admin"
	"linkfolio/internal/apperr"
	"linkfolio/internal/biopages"
	"linkfolio/internal/config"
	"linkfolio/internal/credentials"
	"linkfolio/internal/db"
	"linkfolio/internal/db/mock"
	"linkfolio/internal/identity"
	applog "linkfolio/internal/log"
	"linkfolio/internal/sessions"
	"linkfolio/models"
)

const usage = `usage: admin <command> [arguments]

commands:
  promote <email>             grant admin access
  demote <email>              revoke admin access
  stats                       print dashboard statistics as JSON
  export-users [-o file]      write every user as CSV
  export-profiles [-o file]   write every bio page as CSV
  prune-sessions              delete expired sessions
  import-identity [flags]     create or refresh an account asserted by an
                              identity provider (-email, -first, -last, -image)`

var errUsage = errors.New(usage)

var openDatabase = func(ctx context.Context) (*gorm.DB, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applog.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	if cfg.Database.UseMock {
		return mock.New(ctx)
	}
	return db.Configure(cfg.Database)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "admin: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	database, err := openDatabase(ctx)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	return dispatch(ctx, database, args, out)
}

func dispatch(ctx context.Context, database *gorm.DB, args []string, out io.Writer) error {
	svc := admin.New(database, time.Now())
	command, rest := args[0], args[1:]

	switch command {
	case "promote", "demote":
		if len(rest) != 1 {
			return fmt.Errorf("%s needs exactly one email", command)
		}
		return setAdmin(ctx, database, svc, rest[0], command == "promote", out)
	case "stats":
		stats, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "export-users":
		return export(rest, out, func(w io.Writer) error { return svc.ExportUsersCSV(ctx, w) })
	case "export-profiles":
		return export(rest, out, func(w io.Writer) error { return svc.ExportProfilesCSV(ctx, w) })
	case "prune-sessions":
		deleted, err := sessions.NewStore(database).DeleteExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %d expired sessions\n", deleted)
		return nil
	case "import-identity":
		return importIdentity(ctx, database, rest, out)
	default:
		return fmt.Errorf("unknown command %q\n%w", command, errUsage)
	}
}

func setAdmin(ctx context.Context, database *gorm.DB, svc *admin.Service, email string, value bool, out io.Writer) error {
	user := &models.User{}
	err := database.WithContext(ctx).Where("email = ?", identity.NormalizeEmail(email)).Take(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("no user with email " + strings.TrimSpace(email))
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	// The CLI acts as no particular user, so self-demotion rules do not apply.
	row, err := svc.ToggleAdmin(ctx, "", user.ID, value)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s admin=%t\n", row.Email, row.IsAdmin)
	return nil
}

func importIdentity(ctx context.Context, database *gorm.DB, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import-identity", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var in identity.ExternalIdentity
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.FirstName, "first", "", "first name")
	fs.StringVar(&in.LastName, "last", "", "last name")
	fs.StringVar(&in.ImageURL, "image", "", "profile image URL")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%w", err, errUsage)
	}

	accounts := identity.New(database, credentials.NewBcryptHasher(), biopages.New(database, nil), nil, "")
	user, err := accounts.UpsertExternal(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s id=%s verified=%t\n", user.Email, user.ID, user.EmailVerified)
	return nil
}

func export(args []string, out io.Writer, write func(io.Writer) error) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%w", err, errUsage)
	}

	if *path == "" {
		return write(out)
	}
	f, err := os.Create(*path)
	if err != nil {
		return fmt.Errorf("create %s: %w", *path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
