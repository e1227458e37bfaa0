package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [schema.yaml]",
	Short: "Validate a DV schema (and the rule table) without converting anything",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.SchemaPath = args[0]
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating: %s\n", cfg.SchemaPath)

	sc, rules, err := openSchema()
	if err != nil {
		if printProblems(out, err) {
			return fmt.Errorf("validation failed")
		}
		return err
	}
	fmt.Fprintf(out, "Schema is valid: version %s, %d DVs (%d with measurement metadata), %d match keys, %d clusters\n",
		sc.Version(), sc.Len(), sc.WithMeasurement(), sc.KeyCount(), len(sc.Clusters()))
	fmt.Fprintf(out, "Rule table is valid: version %s, %d rules\n", rules.Version(), rules.Len())
	return nil
}
