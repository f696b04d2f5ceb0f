package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/pccr10001/callscreen/internal/blacklist"
	"github.com/pccr10001/callscreen/internal/config"
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	var number, name string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a caller against the blacklist without touching the modem",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if number == "" && name == "" {
				return errors.New("give --number and/or --name")
			}
			oracle, _, err := newOracle(&config.AppConfig)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if number != "" {
				d, err := oracle.CheckNumber(number)
				if err != nil {
					return err
				}
				printDecision(out, "number", number, d)
			}
			if name != "" {
				d, err := oracle.CheckName(name)
				if err != nil {
					return err
				}
				printDecision(out, "name", name, d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "caller number")
	cmd.Flags().StringVar(&name, "name", "", "caller name")
	return cmd
}

func printDecision(w io.Writer, field, value string, d blacklist.Decision) {
	verdict := "allowed"
	if d.Blocked {
		verdict = "blocked"
	}
	fmt.Fprintf(w, "%s %q: %s (%s", field, value, verdict, d.Reason)
	if d.Matched != "" {
		fmt.Fprintf(w, ", matched %q", d.Matched)
	}
	fmt.Fprintln(w, ")")
}
