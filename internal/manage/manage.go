// Package manage implements the administrative commands of cmd/manage:
// schema migration, superuser creation, demo data seeding and pruning of
// expired refresh tokens.
package manage

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/config"
	"github.com/dmitrijs2005/apikit/internal/server/mail"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/dmitrijs2005/apikit/internal/server/passwords"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/apikit/internal/server/services"
	"github.com/go-playground/validator/v10"
)

// Command names.
const (
	CmdMigrate            = "migrate"
	CmdCreateSuperuser    = "createsuperuser"
	CmdSeed               = "seed"
	CmdFlushExpiredTokens = "flushexpiredtokens"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrPasswordRejected = errors.New("password rejected")
)

type Migrator interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
}

// UserCreator is satisfied by *services.UserService.
type UserCreator interface {
	CreateUser(ctx context.Context, in services.NewUser) (*models.User, error)
}

type TokenFlusher interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type App struct {
	db       *sql.DB
	migrator Migrator
	users    UserCreator
	tokens   TokenFlusher
	logger   logging.Logger
	in       *bufio.Reader
	out      io.Writer
	now      func() time.Time
}

// NewApp opens the database and builds the services the commands use.
// The schema is not migrated here; that is the migrate command's job.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.Env, os.Stderr)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	hasher, err := passwords.NewHasher(passwords.DefaultConfig())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hasher init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	mailer := mail.NewService(mail.NewConsoleSender(logger), c.DefaultFromEmail)
	us := services.NewUserService(db, rm, hasher, mailer, nil, c, logger)

	return &App{
		db:       db,
		migrator: rm,
		users:    us,
		tokens:   rm.Tokens(db),
		logger:   logger,
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		now:      time.Now,
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run executes the command named in args. Global config flags (see
// config.LoadConfig) may precede the command; flags after it belong to
// the command.
func (a *App) Run(ctx context.Context, args []string) error {
	cmd, rest := splitCommand(args)

	switch cmd {
	case CmdMigrate:
		return a.Migrate(ctx)
	case CmdCreateSuperuser:
		return a.CreateSuperuser(ctx, rest)
	case CmdSeed:
		return a.Seed(ctx)
	case CmdFlushExpiredTokens:
		return a.FlushExpiredTokens(ctx)
	default:
		a.usage()
		if cmd == "" {
			return fmt.Errorf("%w: none given", ErrUnknownCommand)
		}
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

var commands = []string{CmdMigrate, CmdCreateSuperuser, CmdSeed, CmdFlushExpiredTokens}

// splitCommand finds the first known command in args and returns it with
// the arguments that follow it. Without a known command the first bare
// argument is reported back as the command.
func splitCommand(args []string) (string, []string) {
	for i, arg := range args {
		if slices.Contains(commands, arg) {
			return arg, args[i+1:]
		}
	}
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return arg, nil
		}
	}
	return "", nil
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: manage [config flags] <command> [command flags]")
	fmt.Fprintln(a.out, "Commands: "+strings.Join(commands, ", "))
}

// Migrate applies the pending schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.migrator.RunMigrations(ctx, a.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	fmt.Fprintln(a.out, "Migrations applied.")
	return nil
}

var emailValidator = validator.New()

// CreateSuperuser creates a staff superuser. Missing values are prompted
// for unless -noinput is set; the password is read without echo and
// confirmed.
func (a *App) CreateSuperuser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(CmdCreateSuperuser, flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "email address of the superuser")
	password := fs.String("password", "", "password of the superuser")
	noInput := fs.Bool("noinput", false, "fail instead of prompting for missing values")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		if *noInput {
			return errors.New("-email is required with -noinput")
		}
		v, err := GetSimpleText(a.in, "Email address", a.out)
		if err != nil {
			return err
		}
		*email = v
	}
	if err := emailValidator.Var(*email, "required,email"); err != nil {
		return errors.New("enter a valid email address")
	}

	if *password == "" {
		if *noInput {
			return errors.New("-password is required with -noinput")
		}
		pw, err := a.promptPassword()
		if err != nil {
			return err
		}
		*password = pw
	}

	if msgs := passwords.Validate(*password, passwords.Attributes{Email: *email}); len(msgs) > 0 {
		for _, m := range msgs {
			fmt.Fprintln(a.out, "This password is rejected: "+m)
		}
		return ErrPasswordRejected
	}

	_, err := a.users.CreateUser(ctx, services.NewUser{
		Email:       *email,
		Password:    *password,
		IsStaff:     true,
		IsSuperuser: true,
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		return errors.New("that email address is already taken")
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Superuser created successfully.")
	return nil
}

func (a *App) promptPassword() (string, error) {
	pw, err := GetPassword("Password", a.out)
	if err != nil {
		return "", err
	}
	again, err := GetPassword("Password (again)", a.out)
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errors.New("your passwords didn't match")
	}
	if pw == "" {
		return "", errors.New("blank passwords aren't allowed")
	}
	return pw, nil
}

// seedUsers are the demo accounts created by Seed.
var seedUsers = []services.NewUser{
	{Email: "admin@example.com", Password: "adminpassword", FirstName: "Admin", LastName: "User", IsStaff: true, IsSuperuser: true},
	{Email: "user1@example.com", Password: "userpassword", FirstName: "User", LastName: "One"},
	{Email: "user2@example.com", Password: "userpassword", FirstName: "User", LastName: "Two"},
	{Email: "user3@example.com", Password: "userpassword", FirstName: "User", LastName: "Three"},
}

// Seed creates the demo accounts. Accounts that already exist are left
// alone, so running it twice is harmless.
func (a *App) Seed(ctx context.Context) error {
	fmt.Fprintln(a.out, "Seeding database...")
	for _, u := range seedUsers {
		_, err := a.users.CreateUser(ctx, u)
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			fmt.Fprintf(a.out, "User %s already exists.\n", u.Email)
		case err != nil:
			return fmt.Errorf("error seeding %s: %w", u.Email, err)
		default:
			fmt.Fprintf(a.out, "User %s created.\n", u.Email)
		}
	}
	fmt.Fprintln(a.out, "Database seeded successfully.")
	return nil
}

// FlushExpiredTokens deletes outstanding refresh tokens past their expiry
// together with their blacklist entries.
func (a *App) FlushExpiredTokens(ctx context.Context) error {
	n, err := a.tokens.DeleteExpired(ctx, a.now())
	if err != nil {
		return fmt.Errorf("error flushing tokens: %w", err)
	}
	a.logger.Info(ctx, "expired tokens flushed", "count", n)
	fmt.Fprintf(a.out, "Deleted %d expired tokens.\n", n)
	return nil
}
