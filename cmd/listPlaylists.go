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

	"github.com/spf13/cobra"

	"github.com/ademuri/playlist-builder/internal/graph"
)

// listPlaylistsCmd represents the listPlaylists command
var listPlaylistsCmd = &cobra.Command{
	Use:   "list-playlists",
	Short: "Lists the playlists currently built in the graph",
	Long:  `Shows what the last run built, without publishing anything.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := listPlaylists(cmd.Context()); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(listPlaylistsCmd)
}

func listPlaylists(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	session, err := graph.Open(ctx, cfg.Neo4j)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	playlists, err := graph.Playlists(ctx, session)
	if err != nil {
		return err
	}
	return printPlaylists(os.Stdout, playlists)
}
