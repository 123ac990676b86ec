// Command huddle-admin manages admin portal accounts, generates VAPID keys
// and takes encrypted database backups. It opens the same database as the
// server.
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
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/dukerupert/huddle/internal/backup"
	"github.com/dukerupert/huddle/internal/config"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/logging"
	"github.com/dukerupert/huddle/internal/password"
	"github.com/dukerupert/huddle/internal/push"
	"github.com/dukerupert/huddle/internal/storage"
	"github.com/dukerupert/huddle/internal/store"
)

const minAdminPasswordLength = 12

const usage = `usage: huddle-admin [-db path] <command> [args]

commands:
  create <username>      create an admin, prompting for the password
  activate <username>    allow an admin to sign in
  deactivate <username>  block an admin from signing in
  list                   list admins
  vapid-keys             print a new VAPID key pair for web push
  backup                 upload an encrypted snapshot of the database
  restore <key> <path>   download a snapshot into a new database file
`

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "huddle-admin:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("huddle-admin", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() { fmt.Fprint(stdout, usage) }
	dbPath := fs.String("db", cfg.DBPath, "path to the SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "vapid-keys":
		return vapidKeys(stdout)
	case "restore":
		if len(rest) != 2 {
			return errors.New("restore needs a backup key and a destination path")
		}
		m := backup.New(nil, newBucket(cfg), cfg.BackupPassphrase, logging.New(os.Stderr, cfg.LogLevel))
		if err := m.Restore(context.Background(), rest[0], rest[1]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "restored %s to %s\n", rest[0], rest[1])
		return nil
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	admins := store.NewAdminStore(db)

	switch cmd {
	case "create":
		username, err := oneArg(cmd, rest)
		if err != nil {
			return err
		}
		return create(admins, password.NewHasher(cfg.BcryptCost), username, stdin, stdout)
	case "activate", "deactivate":
		username, err := oneArg(cmd, rest)
		if err != nil {
			return err
		}
		ok, err := admins.SetActive(username, cmd == "activate")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no admin named %q", username)
		}
		fmt.Fprintf(stdout, "%s %sd\n", username, cmd)
		return nil
	case "list":
		return list(admins, stdout)
	case "backup":
		m := backup.New(db, newBucket(cfg), cfg.BackupPassphrase, logging.New(os.Stderr, cfg.LogLevel))
		res, err := m.Create(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "stored %s (%d bytes)\n", res.Key, res.Size)
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newBucket is a test seam for the storage bucket.
var newBucket = func(cfg *config.Config) *storage.Bucket {
	return storage.New(cfg.Storage())
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("%s needs exactly one username", cmd)
	}
	return strings.TrimSpace(args[0]), nil
}

// promptPassword reads without echo from a terminal, or one line from
// stdin when input is piped.
func promptPassword(prompt string, stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, prompt)
	if isTerminal() {
		pw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprintln(stdout)
	return strings.TrimRight(line, "\r\n"), nil
}

func create(admins *store.AdminStore, hasher *password.Hasher, username string, stdin io.Reader, stdout io.Writer) error {
	existing, err := admins.GetByUsername(username)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("admin %q already exists", username)
	}

	pw, err := promptPassword("Password: ", stdin, stdout)
	if err != nil {
		return err
	}
	if len(pw) < minAdminPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minAdminPasswordLength)
	}
	if isTerminal() {
		again, err := promptPassword("Repeat password: ", stdin, stdout)
		if err != nil {
			return err
		}
		if again != pw {
			return errors.New("passwords do not match")
		}
	}

	digest, err := hasher.Hash(pw)
	if err != nil {
		return err
	}
	a, err := admins.Create(username, digest)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created admin %s (id %d)\n", a.Username, a.ID)
	return nil
}

func list(admins *store.AdminStore, stdout io.Writer) error {
	all, err := admins.List()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(stdout, "no admins")
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tACTIVE\tCREATED")
	for _, a := range all {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", a.ID, a.Username, a.IsActive, a.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func vapidKeys(stdout io.Writer) error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "HUDDLE_VAPID_PUBLIC_KEY=%s\nHUDDLE_VAPID_PRIVATE_KEY=%s\n", pub, priv)
	return nil
}
