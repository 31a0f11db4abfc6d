package main

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts tokenOptions
	var (
		count  int
		start  int
		prefix string
		output string
	)

	cmd := &cobra.Command{
		Use:   "gen-token [user-id]",
		Short: "Mint HS256 bearer tokens for the local auth mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1")
			}
			if start < 1 {
				return fmt.Errorf("start index must be at least 1")
			}
			if len(args) > 0 && count > 1 {
				return fmt.Errorf("explicit user ID cannot be provided when generating multiple tokens")
			}
			opts.Secret = secretFromEnv(os.Getenv)
			if opts.Secret == "" {
				return fmt.Errorf("TEST_JWT_SECRET or LOCAL_AUTH_SHARED_SECRET must be set")
			}

			tokens, err := generateTokens(opts, userIDs(count, prefix, start, args))
			if err != nil {
				return err
			}
			if output != "" {
				data, err := sonic.Marshal(tokens)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, append(data, '\n'), 0o600); err != nil {
					return err
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), tokens[0])
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&count, "count", 1, "number of tokens to generate")
	f.StringVar(&prefix, "prefix", "dev-user", "prefix for generated user IDs when count > 1")
	f.IntVar(&start, "start", 1, "starting index for generated user IDs when count > 1")
	f.StringVar(&output, "output", "", "file to write generated tokens as a JSON array")
	f.StringVar(&opts.Audience, "audience", "", "aud claim")
	f.StringVar(&opts.Issuer, "issuer", "", "iss claim")
	f.DurationVar(&opts.TTL, "ttl", defaultTTL, "token lifetime")
	return cmd
}
