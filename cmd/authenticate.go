/*
Copyright 2020 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ademuri/playlist-builder/internal/auth"
	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/store"
)

var authenticateCmd = &cobra.Command{
	Use:   "authenticate",
	Short: "Authorizes playlist creation for the Spotify user.",
	Long: `Runs the browser authorization flow once and stores the token in the run
ledger, so later runs can publish without a prompt.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err == nil {
			err = authenticate(cmd.Context(), cfg)
		}
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(authenticateCmd)
}

func authenticate(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := cfg.ValidatePublish(); err != nil {
		return err
	}

	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	authenticator, err := auth.New(cfg.Spotify, db)
	if err != nil {
		return err
	}
	authenticator.Prompt = func(url string) {
		fmt.Println("Open this URL to authorize playlist-builder:", url)
	}
	if _, err := authenticator.Login(ctx); err != nil {
		return err
	}

	fmt.Printf("Successfully authenticated %q\n", cfg.Spotify.UserID)
	return nil
}
