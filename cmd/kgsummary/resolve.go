package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>",
	Short: "Look up a document id, entity id (Q...) or title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(ctx))

		m, found, err := a.Resolver.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%q does not resolve to a mapped document", args[0])
		}
		raw, err := yaml.Marshal(struct {
			DocumentID int64  `yaml:"document_id"`
			Title      string `yaml:"title"`
			EntityID   string `yaml:"entity_id"`
		}{m.DocumentID, m.Title, m.EntityID})
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	},
}
