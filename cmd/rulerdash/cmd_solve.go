package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/spf13/cobra"
)

var (
	solveTimeout string
	solveOrder   string

	solveCmd = &cobra.Command{
		Use:   "solve",
		Short: "Ask the solver to start a search",
		Long: `Sends the solve trigger. --timeout and --order take the same free text
as the dashboard inputs: anything that is not a positive integer falls back
to solve.default_timeout / solve.default_order.`,
		RunE: runSolve,
	}
)

func init() {
	solveCmd.Flags().StringVar(&solveTimeout, "timeout", "", "Search timeout in seconds")
	solveCmd.Flags().StringVar(&solveOrder, "order", "", "Number of marks")
}

func runSolve(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime("rulerdash", false)
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := requestSolve(cmd.Context(), rt, solveTimeout, solveOrder)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "search requested: order=%d timeout=%ds (%s)\n", p.Order, p.Timeout, rt.cfg.HTTPBase())
	return nil
}

func requestSolve(ctx context.Context, rt *runtime, timeoutText, orderText string) (client.SolveParams, error) {
	defaults := client.SolveDefaults{Timeout: rt.cfg.Solve.DefaultTimeout, Order: rt.cfg.Solve.DefaultOrder}
	p := defaults.Parse(timeoutText, orderText)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.NewHTTPClient(rt.cfg.HTTPBase()).Solve(ctx, p); err != nil {
		return p, err
	}
	rt.logger.Info("solve requested", "order", p.Order, "timeout", p.Timeout)
	return p, nil
}
