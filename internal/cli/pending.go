package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// PendingCmd returns the pending command
func PendingCmd(load Loader) *cobra.Command {
	var showCode bool

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List OTP records awaiting dispatch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := load(cmd.Context())
			if err != nil {
				return err
			}
			recs, err := b.OTPs.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No pending OTPs.")
				return nil
			}
			for _, r := range recs {
				code := "******"
				if showCode && r.OTP != nil {
					code = *r.OTP
				}
				fmt.Fprintf(out, "%s  %s\n", r.Phone, color.New(color.FgCyan).Sprint(code))
			}
			fmt.Fprintf(out, "\n%d pending\n", len(recs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showCode, "show-code", false, "print the OTP codes instead of masking them")
	return cmd
}
