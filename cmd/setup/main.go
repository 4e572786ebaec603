// Command setup bootstraps a fresh installation: it runs the schema
// migrations, creates the first user account, and optionally stores an
// encrypted upstream API key for that user.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/chatvault/chatvault/internal/common"
	"github.com/chatvault/chatvault/internal/cryptox"
	"github.com/chatvault/chatvault/internal/server/config"
	"github.com/chatvault/chatvault/internal/server/keys"
	"github.com/chatvault/chatvault/internal/server/repomanager"
	"github.com/chatvault/chatvault/internal/server/users"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func promptText(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt + "\n> ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt + ": ")
	secret, err := readPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func run(ctx context.Context) error {

	cfg := config.LoadConfig()

	// Setup writes durable secrets, so an ephemeral key makes no sense here:
	// the configured key is required.
	encryptionKey, err := cryptox.KeyFromBase64(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	us := users.NewService(rm.Users(db), cfg)
	ks := keys.NewService(db, encryptionKey)

	reader := bufio.NewReader(os.Stdin)

	username, err := promptText(reader, "Enter username")
	if err != nil {
		return err
	}
	email, err := promptText(reader, "Enter email")
	if err != nil {
		return err
	}
	password, err := promptSecret("Enter password")
	if err != nil {
		return err
	}

	user, err := us.Register(ctx, username, email, password)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("user %q already exists", username)
		}
		return err
	}

	fmt.Printf("Created user %s\n", user.Username)

	answer, err := promptText(reader, "Store an OpenAI API key for this user? [y/N]")
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") {
		fmt.Println("Done.")
		return nil
	}

	apiKey, err := promptSecret("Enter API key")
	if err != nil {
		return err
	}
	label, err := promptText(reader, "Enter key name (empty for default)")
	if err != nil {
		return err
	}

	meta, err := ks.Store(ctx, user.ID, apiKey, label)
	if err != nil {
		return err
	}

	fmt.Printf("Stored key %q (%s)\n", meta.Label, meta.ID)
	fmt.Println("Done.")
	return nil
}

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
