package cmd

import (
	"context"

	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/gateway"

	"github.com/spf13/cobra"
)

func (a *app) bakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bake <amount>",
		Short: "Add cookies to your jar",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd.Context(), args[0], "Baked", func(ctx context.Context, c jar, n uint64) (gateway.Result, error) {
				return c.Bake(ctx, n)
			})
		},
	}
}

func (a *app) eatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eat <amount>",
		Short: "Eat cookies from your jar",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd.Context(), args[0], "Ate", func(ctx context.Context, c jar, n uint64) (gateway.Result, error) {
				return c.Eat(ctx, n)
			})
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty your jar",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			res, err := c.Clear(cmd.Context())
			if err != nil {
				return err
			}
			a.printf("Cleared the jar (batch %s)\n", res.BatchID)
			return nil
		},
	}
}

func (a *app) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show how many cookies are in your jar",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			v, ok, err := c.Count(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				a.printf("0 (no jar yet)\n")
				return nil
			}
			a.printf("%d\n", v)
			return nil
		},
	}
}

// jar is the part of the client the submitting commands use.
type jar interface {
	Bake(ctx context.Context, n uint64) (gateway.Result, error)
	Eat(ctx context.Context, n uint64) (gateway.Result, error)
}

func (a *app) submit(ctx context.Context, amount, verb string, fn func(context.Context, jar, uint64) (gateway.Result, error)) error {
	n, err := envelope.ParseAmount(amount)
	if err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	res, err := fn(ctx, c, n)
	if err != nil {
		return err
	}
	a.printf("%s %d cookies (batch %s)\n", verb, n, res.BatchID)
	return nil
}
