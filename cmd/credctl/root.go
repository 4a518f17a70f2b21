package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"
)

// errNegative marks a completed check with a negative answer (mismatch, weak secret).
// It exits with status 1 without an error message.
var errNegative = errors.New("negative result")

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errNegative):
		return 1
	default:
		return 2
	}
}

type secretSource struct {
	in     io.Reader
	secret string
	set    bool
}

// read returns the --secret flag value, or the first line of stdin.
func (s *secretSource) read() (string, error) {
	if s.set {
		return s.secret, nil
	}
	line, err := bufio.NewReader(s.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" && errors.Is(err, io.EOF) {
		return "", errors.New("no secret given: use --secret or pipe it on stdin")
	}
	return line, nil
}

func (s *secretSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.secret, "secret", "", "secret to use (default: first line of stdin)")
	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		s.set = cmd.Flags().Changed("secret")
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "credctl",
		Short:         "Hash, verify, check and generate credentials",
		Long:          `credctl applies the Hansa credential policy locally. Hash settings come from the same HANSA_PASSWORD_* and HANSA_ARGON2_* variables the server reads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.AddCommand(
		newHashCmd(in),
		newVerifyCmd(in),
		newCheckCmd(in),
		newGenerateCmd(),
	)
	return root
}

func newHashCmd(in io.Reader) *cobra.Command {
	src := &secretSource{in: in}
	var workFactor int

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := src.read()
			if err != nil {
				return err
			}

			var hash string
			if workFactor > 0 {
				hash, err = password.Hash(secret, workFactor)
			} else {
				cfg, cfgErr := password.FromEnv()
				if cfgErr != nil {
					return cfgErr
				}
				hash, err = cfg.Hash(secret)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	src.bind(cmd)
	cmd.Flags().IntVar(&workFactor, "work-factor", 0, "bcrypt cost (4..31); 0 uses the configured algorithm")
	return cmd
}

func newVerifyCmd(in io.Reader) *cobra.Command {
	src := &secretSource{in: in}
	var hash string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a secret against a hash (exit 1 on mismatch)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := src.read()
			if err != nil {
				return err
			}
			ok, err := password.Verify(secret, hash)
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "mismatch")
				return errNegative
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "match")
			return err
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVar(&hash, "hash", "", "encoded bcrypt or argon2id hash")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}

func newCheckCmd(in io.Reader) *cobra.Command {
	src := &secretSource{in: in}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a secret against the strength rules (exit 1 if weak)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := src.read()
			if err != nil {
				return err
			}
			res := password.ValidateStrength(secret)

			w := cmd.OutOrStdout()
			if asJSON {
				if err := json.NewEncoder(w).Encode(res); err != nil {
					return err
				}
			} else if res.IsValid {
				_, _ = fmt.Fprintln(w, "ok")
			} else {
				for _, msg := range res.Errors {
					_, _ = fmt.Fprintln(w, "-", msg)
				}
			}

			if !res.IsValid {
				return errNegative
			}
			return nil
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		length int
		strong bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				secret string
				err    error
			)
			if strong {
				secret, err = password.GenerateStrong(length)
			} else {
				secret, err = password.Generate(length)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), secret)
			return err
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", password.DefaultGenerateLength, "number of characters")
	cmd.Flags().BoolVar(&strong, "strong", false, "redraw until the secret passes the strength rules")
	return cmd
}
