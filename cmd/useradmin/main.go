// Command useradmin manages API accounts from the shell:
//
//	useradmin hash
//	useradmin create -username coach1 -role coach
//	useradmin reset-password -username coach1
//	useradmin deactivate -username coach1
//	useradmin reactivate -username coach1
//
// Passwords are read from the first line of stdin so they never appear in
// the process list or shell history.
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

	"cloudvienna/internal/audit"
	"cloudvienna/internal/auth"
	"cloudvienna/internal/config"
	"cloudvienna/internal/db"
	"cloudvienna/internal/observability"
)

var commands = map[string]struct{}{
	"hash":           {},
	"create":         {},
	"reset-password": {},
	"deactivate":     {},
	"reactivate":     {},
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "useradmin:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: useradmin <hash|create|reset-password|deactivate|reactivate> [flags]")
	}
	command := args[0]
	if _, ok := commands[command]; !ok {
		return fmt.Errorf("unknown command %q", command)
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	role := fs.String("role", auth.RoleStaff, "account role: admin, coach or staff")
	envDir := fs.String("env-dir", ".", "directory holding .env files")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	config.LoadDotEnv(*envDir)
	hasher := auth.NewPasswordHasher(config.EnvIntOrDefault("API_PASSWORD_ITERATIONS", auth.DefaultPasswordIterations))

	if command == "hash" {
		password, err := readPassword(stdin)
		if err != nil {
			return err
		}
		encoded, err := hasher.Hash(password)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, encoded)
		return err
	}

	if strings.TrimSpace(*username) == "" {
		return errors.New("-username is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return err
	}
	defer database.Close()

	logger := observability.NewLogger()
	manager := auth.NewUserManager(auth.NewRepository(database), hasher, audit.NewSink(audit.NewRepository(database), logger))
	meta := auth.RequestMeta{Actor: "useradmin", ClientIP: "local"}

	switch command {
	case "create":
		password, err := readPassword(stdin)
		if err != nil {
			return err
		}
		user, err := manager.Create(ctx, meta, *username, password, *role)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "created %s (%s) id=%s\n", user.Username, user.Role, user.ID)
		return err
	case "reset-password":
		password, err := readPassword(stdin)
		if err != nil {
			return err
		}
		if err := manager.ResetPassword(ctx, meta, *username, password); err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "password reset for %s\n", *username)
		return err
	case "deactivate", "reactivate":
		active := command == "reactivate"
		if err := manager.SetActive(ctx, meta, *username, active); err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%s active=%t\n", *username, active)
		return err
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func readPassword(stdin io.Reader) (string, error) {
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must be provided on stdin")
	}
	return password, nil
}
