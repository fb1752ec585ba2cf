package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/amaumene/towatch/internal/client"
	"github.com/amaumene/towatch/internal/models"
	"github.com/amaumene/towatch/internal/utils"
	"github.com/spf13/cobra"
)

type remoteFlags struct {
	server   string
	session  string
	logLevel string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	server := os.Getenv("TOWATCH_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.Flags().StringVar(&f.server, "server", server, "base URL of the towatch server (env TOWATCH_SERVER)")
	cmd.Flags().StringVar(&f.session, "session", os.Getenv("TOWATCH_SESSION"), "session token (env TOWATCH_SESSION)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "log level")
}

func (f *remoteFlags) synchronizer() *client.Synchronizer {
	logger := utils.NewLogger(f.logLevel, "text")
	c := client.NewClient(f.server, logger, client.WithSessionToken(f.session))
	return client.NewSynchronizer(c, nil, logger)
}

func newListCmd() *cobra.Command {
	var flags remoteFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the to-watch list of the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			sync := flags.synchronizer()
			if err := sync.Load(cmd.Context()); err != nil {
				return err
			}
			if sync.Unauthenticated() {
				return errors.New("not signed in: pass --session")
			}
			printItems(cmd.OutOrStdout(), sync.Items())
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newToggleCmd() *cobra.Command {
	var (
		flags  remoteFlags
		title  string
		poster string
		year   int
	)

	cmd := &cobra.Command{
		Use:   "toggle <type:tmdbId>",
		Short: "Add an item to the list, or remove it if already saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, tmdbID, err := models.ParseMediaID(args[0])
			if err != nil {
				return err
			}

			sync := flags.synchronizer()
			if err := sync.Load(cmd.Context()); err != nil {
				return err
			}
			if sync.Unauthenticated() {
				return errors.New("not signed in: pass --session")
			}

			item := models.ToWatchItem{
				MediaID: models.NewMediaID(mediaType, tmdbID),
				Type:    mediaType,
				Title:   title,
				Year:    year,
				TMDBID:  tmdbID,
			}
			if poster != "" {
				item.Poster = &poster
			}
			if !sync.IsSaved(item.MediaID) && title == "" {
				return errors.New("--title is required when adding an item")
			}

			out := sync.Toggle(cmd.Context(), item)
			if out.Result == client.RolledBack {
				return fmt.Errorf("%s %s: %w", out.Op, item.MediaID, out.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", out.Op, item.MediaID, out.Result)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "title to store when adding")
	cmd.Flags().StringVar(&poster, "poster", "", "poster URL to store when adding")
	cmd.Flags().IntVar(&year, "year", 0, "release year to store when adding")
	return cmd
}

func printItems(w io.Writer, items []models.ToWatchItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "Your to-watch list is empty")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MEDIA ID\tTITLE\tYEAR\tADDED")
	for _, item := range items {
		added := ""
		if !item.CreatedAt.IsZero() {
			added = item.CreatedAt.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", item.MediaID, item.Title, item.Year, added)
	}
	tw.Flush()
}
