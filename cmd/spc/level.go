package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spc-dev/spc/internal/errors"
	"github.com/spc-dev/spc/pkg/level"
)

func levelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Read and write level data embedded in a guideline field",
		Long: `Read and write the level data embedded in a level's guideline field.

The field is a "~"-separated list of guideline values. Level data rides
inside it between two sentinel tokens, so the field stays readable by the
host while carrying the extra payload.

Examples:
  spc level encode data.json --field "0~0.8~30~0.9"
  spc level decode field.txt
  echo "$FIELD" | spc level has`,
	}

	cmd.AddCommand(levelEncodeCmd(), levelDecodeCmd(), levelHasCmd())
	return cmd
}

func levelEncodeCmd() *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "encode [data.json]",
		Short: "Embed level data JSON into a guideline field",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			d, err := level.Unmarshal(raw)
			if err != nil {
				return errors.New("E142").Wrap(err).
					WithSuggestion("Check the JSON against the level data layout")
			}
			out, err := level.Encode(d, strings.TrimSpace(field))
			if err != nil {
				return errors.New("E142").Wrap(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&field, "field", "f", "", "Existing guideline field to embed into")
	return cmd
}

func levelDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [field.txt]",
		Short: "Extract level data JSON from a guideline field",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			d, err := level.Decode(strings.TrimSpace(string(raw)))
			switch {
			case stderrors.Is(err, level.ErrNoPayload):
				return errors.New("E141").
					WithSuggestion("Use 'spc level has' to check a field before decoding")
			case err != nil:
				return errors.New("E142").Wrap(err)
			}
			b, err := level.Marshal(d)
			if err != nil {
				return errors.New("E142").Wrap(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	return cmd
}

func levelHasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "has [field.txt]",
		Short: "Report whether a guideline field carries level data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), level.Has(strings.TrimSpace(string(raw))))
			return nil
		},
	}
	return cmd
}

// readInput reads the named file, or stdin when no file or "-" is given.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, errors.New("E143").Wrap(err)
	}
	return b, nil
}
