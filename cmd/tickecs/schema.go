package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l1jgo/tickecs/internal/core/ecs"
	"github.com/l1jgo/tickecs/internal/data"
)

func newSchemaCmd() *cobra.Command {
	var (
		file     string
		capacity int
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Validate a table schema file and print its tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := data.LoadSchemaTable(file, capacity)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, tbl := range schema.Tables() {
				fmt.Fprintf(out, "%s (capacity %d)\n", tbl.Name(), tbl.Capacity())
				for _, c := range tbl.Columns() {
					fmt.Fprintf(out, "  %s\n", describeColumn(c))
				}
			}
			fmt.Fprintf(out, "%d tables\n", schema.Count())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "data/schema.yaml", "schema file to check")
	cmd.Flags().IntVar(&capacity, "capacity", ecs.DefaultCapacity, "capacity for tables that set none")
	return cmd
}

func describeColumn(c ecs.ColumnDef) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(": ")
	b.WriteString(c.Kind.String())
	if c.Kind == ecs.KindVector {
		fmt.Fprintf(&b, "[%d]", c.Len)
	}
	return b.String()
}
