package cmd

import (
	"errors"
	"fmt"

	"github.com/blockberries/cookiejar/events"
	"github.com/blockberries/cookiejar/signing"
	"github.com/blockberries/cookiejar/types"

	"github.com/spf13/cobra"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print every change to your jar until interrupted",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			l, err := c.Watch(ctx)
			if err != nil {
				return err
			}
			defer l.Close()

			a.printf("Watching %s\n", c.Address())
			for {
				ev, err := l.Next(ctx)
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, events.ErrClosed) {
						return nil
					}
					return err
				}
				for _, ch := range ev.StateChanges {
					a.printf("#%d %s\n", ev.Sequence, describe(ch))
				}
			}
		},
	}
}

func describe(ch types.StateChange) string {
	if ch.Type == types.ChangeDelete {
		return "jar removed"
	}
	return fmt.Sprintf("jar holds %s", ch.Value)
}

func (a *app) keygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen [name]",
		Short: "Create a signing key",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			name := a.cfg.Client.KeyName
			if len(args) == 1 {
				name = args[0]
			}
			dir := a.cfg.Client.KeyDir
			if dir == "" {
				var err error
				if dir, err = signing.DefaultKeyDir(); err != nil {
					return err
				}
			}
			priv, err := signing.GeneratePrivateKey()
			if err != nil {
				return err
			}
			path, err := signing.WriteKeyFiles(dir, name, priv, force)
			if err != nil {
				return err
			}
			a.printf("Wrote %s\nPublic key %s\n", path, signing.NewSigner(priv).PublicKeyHex())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}
