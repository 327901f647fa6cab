package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/weave/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List procedure instances saved in Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := storeFromFlags(cmd)
		if err != nil {
			return err
		}
		defer closeStore()
		if store == nil {
			return errors.New("--redis is required")
		}

		ctx := cmd.Context()
		ids, err := store.List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROCEDURE\tSTATUS\tACTIVE\tTICKS")
		for _, id := range ids {
			snap, err := store.Load(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				snap.ID, snap.Procedure, tui.Status(string(snap.Status)), strings.Join(snap.Active, ","), snap.Ticks)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(instancesCmd)
	instancesCmd.Flags().String("redis", "localhost:6379", "Redis address")
}
