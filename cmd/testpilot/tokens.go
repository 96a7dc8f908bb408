package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrel-qa/testpilot/apitoken"
	"github.com/kestrel-qa/testpilot/database"
	"github.com/kestrel-qa/testpilot/logger"
)

var (
	tokenName   string
	tokenScope  string
	tokenExpiry time.Duration
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "API token management commands",
}

var tokensCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		store, cleanup, err := tokenStoreFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		expiry, err := apitoken.ValidateExpiry(tokenExpiry)
		if err != nil {
			return err
		}

		raw, hash, err := apitoken.GenerateToken()
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}

		token := &apitoken.APIToken{
			Name:      tokenName,
			TokenHash: hash,
			Scope:     tokenScope,
			ExpiresAt: time.Now().Add(expiry),
			IsActive:  true,
		}

		if err := store.Create(ctx, token); err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}

		// The raw token is shown exactly once; only its hash is stored.
		fmt.Printf("Token created: %s\n", token.ID)
		fmt.Printf("Secret (save this now, it will not be shown again):\n%s\n", raw)
		return nil
	},
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active API tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		store, cleanup, err := tokenStoreFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		tokens, err := store.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tokens: %w", err)
		}

		if len(tokens) == 0 {
			fmt.Println("No active tokens")
			return nil
		}

		for _, t := range tokens {
			fmt.Printf("%s  %-20s  %-10s  expires %s\n",
				t.ID, t.Name, t.Scope, t.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

var tokensRevokeCmd = &cobra.Command{
	Use:   "revoke [token-id]",
	Short: "Revoke an API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid token ID: %w", err)
		}

		store, cleanup, err := tokenStoreFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := store.Revoke(ctx, id); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}

		fmt.Println("Token revoked")
		return nil
	},
}

// tokenStoreFromConfig connects to the database and returns a token store
// plus a cleanup function closing the connection.
func tokenStoreFromConfig() (apitoken.Store, func(), error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewLogrusLogger(cfg.Log.Level)

	db, err := database.Connect(databaseConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	cleanup := func() { sqlDB.Close() }
	return apitoken.NewMySQLStore(db, log), cleanup, nil
}

func init() {
	tokensCreateCmd.Flags().StringVarP(&tokenName, "name", "n", "", "token name (required)")
	tokensCreateCmd.MarkFlagRequired("name")
	tokensCreateCmd.Flags().StringVarP(&tokenScope, "scope", "s", apitoken.ScopeReadOnly, "token scope: read_only or read_write")
	tokensCreateCmd.Flags().DurationVarP(&tokenExpiry, "expiry", "e", 0, "token lifetime (default 720h)")

	tokensCmd.AddCommand(tokensCreateCmd)
	tokensCmd.AddCommand(tokensListCmd)
	tokensCmd.AddCommand(tokensRevokeCmd)

	tokensCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(tokensCmd)
}
