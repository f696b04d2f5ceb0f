package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pccr10001/callscreen/internal/config"
	"github.com/pccr10001/callscreen/internal/modem"
	"github.com/pccr10001/callscreen/pkg/logger"
	"github.com/spf13/cobra"
)

func atCmd() *cobra.Command {
	var expect string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "at <command>",
		Short: "Open the modem, run one AT command and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(&config.AppConfig)
			if err != nil {
				return err
			}
			defer func() {
				if err := sess.Shutdown(); err != nil {
					logger.Log.Errorf("Shutdown failed: %v", err)
				}
			}()
			if err := sess.Open(); err != nil {
				return fmt.Errorf("open modem: %w", err)
			}

			res := sess.Engine().ExecuteContext(cmd.Context(), modem.Request{Command: args[0], Expected: expect, Timeout: timeout})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s -> %s (%s)\n", res.Command, res.Status, res.Elapsed.Round(time.Millisecond))
			if len(res.Lines) > 0 {
				fmt.Fprintln(out, strings.Join(res.Lines, "\n"))
			}
			return res.Err()
		},
	}
	cmd.Flags().StringVar(&expect, "expect", modem.ResponseOK, "response line that acknowledges the command")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "response timeout")
	return cmd
}
