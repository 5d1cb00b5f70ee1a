package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/depreview/depreview/pkg/errors"
)

func (c *CLI) idCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Convert between list ids and URL tokens",
		Long: `Convert between numeric list ids and the opaque tokens used in list URLs.
Tokens depend on the configured secret (DEPREVIEW_SECRET).`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encode <id>",
		Short: "Print the token for a list id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid id %q", args[0])
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			codec, err := c.codec(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Out, codec.Encode(n))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decode <token>",
		Short: "Print the list id for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			codec, err := c.codec(cfg)
			if err != nil {
				return err
			}
			n, err := codec.Decode(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Out, n)
			return nil
		},
	})

	return cmd
}
