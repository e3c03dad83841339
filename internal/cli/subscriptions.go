package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/otp-relay/internal/domain"
)

// SubscribeCmd returns the subscribe command
func SubscribeCmd(load Loader) *cobra.Command {
	var senderID string

	cmd := &cobra.Command{
		Use:   "subscribe <phone>",
		Short: "Opt a phone in to notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := load(cmd.Context())
			if err != nil {
				return err
			}
			if err := b.Gate.Subscribe(cmd.Context(), args[0], senderID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s subscribed\n", color.New(color.FgGreen).Sprint("✓"), b.Gate.Canonical(args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&senderID, "sender-id", "", "messaging-network sender identifier to record")
	return cmd
}

// UnsubscribeCmd returns the unsubscribe command
func UnsubscribeCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <phone>",
		Short: "Opt a phone out of notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := load(cmd.Context())
			if err != nil {
				return err
			}
			if err := b.Gate.Unsubscribe(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s unsubscribed\n", color.New(color.FgYellow).Sprint("✗"), b.Gate.Canonical(args[0]))
			return nil
		},
	}
}

// CheckCmd returns the check command
func CheckCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "check <phone>",
		Short: "Show the stored subscription of a phone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sub, err := b.Gate.Lookup(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrNotFound) {
				fmt.Fprintf(out, "%s %s\n", b.Gate.Canonical(args[0]), color.New(color.FgHiBlack).Sprint("(no record)"))
				return nil
			}
			if err != nil {
				return err
			}
			state := color.New(color.FgRed).Sprint("UNSUBSCRIBED")
			if sub.Subscribed {
				state = color.New(color.FgGreen).Sprint("SUBSCRIBED")
			}
			fmt.Fprintf(out, "%s %s\n", sub.Phone, state)
			if sub.WhatsappID != "" {
				fmt.Fprintf(out, "  sender:  %s\n", sub.WhatsappID)
			}
			fmt.Fprintf(out, "  updated: %s\n", sub.UpdatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

// StatsCmd returns the stats command
func StatsCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := load(cmd.Context())
			if err != nil {
				return err
			}
			st, err := b.Gate.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:        %d\n", st.Total)
			fmt.Fprintf(out, "Subscribed:   %s\n", color.New(color.FgGreen).Sprint(st.Subscribed))
			fmt.Fprintf(out, "Unsubscribed: %s\n", color.New(color.FgYellow).Sprint(st.Unsubscribed))
			return nil
		},
	}
}
