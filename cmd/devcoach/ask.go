package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask the coach a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Show today's task summary",
	RunE:  runDigest,
}

func runAsk(cmd *cobra.Command, args []string) error {
	reply, err := newAPIClient().Ask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func runDigest(cmd *cobra.Command, args []string) error {
	summary, err := newAPIClient().Digest(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(summary)
	return nil
}
