package commands

import (
	"fmt"

	"easychat/internal/auth"
	"easychat/internal/config"
	"easychat/internal/content"
	"easychat/internal/models"
	"easychat/internal/storage"
)

// AddUser creates a user directly in storage with a random password and
// prints the credentials once. Meant for bootstrapping the first
// accounts before the registration endpoint is reachable.
func AddUser(username string, cfg *config.Config) error {
	if err := content.ValidateUsername(username); err != nil {
		return err
	}

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	password, err := auth.GeneratePassword()
	if err != nil {
		return err
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	creds, err := store.CreateCredentials(auth.UserCredentials{
		User: models.User{
			UserName:    username,
			DisplayName: username,
			Status:      models.UserStatusActive,
		},
		PasswordHash: passwordHash,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("\nUser Created Successfully!\n")
	fmt.Printf("User ID:   %d\n", creds.ID)
	fmt.Printf("Username:  %s\n", creds.UserName)
	fmt.Printf("Password:  %s\n\n", password)
	fmt.Println("Please share these credentials with the user and ask them to change the password.")
	return nil
}
