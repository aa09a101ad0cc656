package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/config"
)

// seedFile is the import format. JSON files parse as YAML too.
type seedFile struct {
	Entities  []apptype.EntityInput `yaml:"entities"`
	Relations []apptype.Relation    `yaml:"relations"`
}

func loadSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &seed, nil
}

func importCmd() *cobra.Command {
	var libsqlURL string
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Load entities and relations from a YAML or JSON file into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loadSeed(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			a, logger, err := bootstrap(cmd.Context(), func(c *config.Config) {
				if flags.Changed("libsql-url") {
					c.Database.URL = libsqlURL
				}
				c.Database.Enabled = true
			})
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close(context.Background())

			entities := make([]apptype.Entity, 0, len(seed.Entities))
			for _, in := range seed.Entities {
				ent, err := in.ToEntity()
				if err != nil {
					return fmt.Errorf("entity %q: %w", in.ID, err)
				}
				entities = append(entities, ent)
			}
			if len(entities) > 0 {
				if err := a.Engine.RegisterEntities(cmd.Context(), entities); err != nil {
					return err
				}
			}
			if len(seed.Relations) > 0 {
				if err := a.Engine.Link(cmd.Context(), seed.Relations); err != nil {
					return err
				}
			}
			logger.Info("import complete",
				zap.String("file", args[0]),
				zap.Int("entities", len(entities)),
				zap.Int("relations", len(seed.Relations)),
			)
			st := a.Engine.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entities and %d relations (graph: %d entities, %d edges)\n",
				len(entities), len(seed.Relations), st.Entities, st.Edges)
			return nil
		},
	}
	cmd.Flags().StringVar(&libsqlURL, "libsql-url", "", "libSQL database URL (default from config)")
	return cmd
}
