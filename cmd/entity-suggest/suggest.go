package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

func suggestCmd() *cobra.Command {
	var (
		limit    int
		types    []string
		exclude  []string
		withTags bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "suggest [entity-id]",
		Short: "Print suggestions for one entity from the persisted graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := bootstrap(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close(context.Background())

			opts := apptype.GenerateSuggestionsArgs{
				EntityID:      args[0],
				MaxResults:    limit,
				Types:         types,
				ExcludeIDs:    exclude,
				IncludeTags:   withTags,
				IncludeReason: true,
			}.Options()
			list, err := a.Engine.GenerateSuggestions(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(apptype.SuggestionsResult{EntityID: args[0], Suggestions: list})
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tLABEL\tCONFIDENCE\tPRIORITY\tREASON")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%s\t%s\n", s.ID, s.Type, s.Label, s.Confidence, s.Priority, s.Reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (default from config)")
	cmd.Flags().StringSliceVarP(&types, "types", "t", nil, "restrict to entity types")
	cmd.Flags().StringSliceVarP(&exclude, "exclude", "x", nil, "entity ids to exclude")
	cmd.Flags().BoolVar(&withTags, "tags", false, "include candidate tags")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}
