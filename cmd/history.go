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
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ademuri/playlist-builder/internal/store"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists previous runs from the ledger",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := history(viper.GetString("database"), viper.GetInt("limit"), os.Stdout)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	var limit int
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show, 0 for all")
	viper.BindPFlag("limit", historyCmd.Flags().Lookup("limit"))
}

func history(dbPath string, limit int, out io.Writer) error {
	db, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(limit)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Run", "Playlist", "Started", "Status", "Tracks", "Playlists", "Error"})
	for _, r := range runs {
		status := r.Status
		if r.SkippedFetch {
			status += " (no fetch)"
		}
		if err := table.Append([]string{
			r.ID[:8],
			r.Playlist,
			r.Started.Local().Format("2006-01-02 15:04"),
			status,
			strconv.Itoa(r.Tracks),
			strconv.Itoa(r.Playlists),
			r.Error,
		}); err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	return nil
}
