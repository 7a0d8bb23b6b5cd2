package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/shakelines/internal/samples"
)

// NewSamplesCommand creates the samples command.
func NewSamplesCommand(rootOpts *RootOptions) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "samples [name]",
		Short: "List the sample fragments or show one of them",
		Long: `List the sample fragments of the catalog, or show the code, arguments and
expected value of one sample. Any sample can be searched with
"shakelines run --sample <name>".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}

			catalog, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				return formatter.Success(catalog, func(w io.Writer) error {
					return writeCatalog(w, catalog)
				})
			}

			sample, err := catalog.Find(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "find sample", err)
			}
			return formatter.Success(sample, func(w io.Writer) error {
				return writeSample(w, sample)
			})
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML sample catalog (default: built-in)")

	return cmd
}

func writeCatalog(w io.Writer, c *samples.Catalog) error {
	var b strings.Builder
	for _, s := range c.Samples {
		fmt.Fprintf(&b, "%-14s %s\n", s.Name, s.Description)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSample(w io.Writer, s samples.Sample) error {
	values, err := json.Marshal(s.ArgValues)
	if err != nil {
		return err
	}
	expected, err := json.Marshal(s.Expected)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %s\n", "Name:", s.Name)
	if s.Description != "" {
		fmt.Fprintf(&b, "%-10s %s\n", "About:", s.Description)
	}
	fmt.Fprintf(&b, "%-10s %s\n", "Args:", strings.Join(s.ArgNames, ", "))
	fmt.Fprintf(&b, "%-10s %s\n", "Values:", values)
	fmt.Fprintf(&b, "%-10s %s\n", "Expected:", expected)
	b.WriteString("\n")
	b.WriteString(s.Code)
	if !strings.HasSuffix(s.Code, "\n") {
		b.WriteString("\n")
	}

	_, err = io.WriteString(w, b.String())
	return err
}
