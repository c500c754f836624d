package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v as JSON when asJSON is set, otherwise the text produced by render.
func emit(cmd *cobra.Command, asJSON bool, v any, render func() string) error {
	if asJSON {
		return writeJSON(cmd, v)
	}
	fmt.Fprint(cmd.OutOrStdout(), render())
	return nil
}
