package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fluxfullcircle/fluxdna/internal/secrets"
)

func newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Encrypt tracking ids and tokens for config and options files",
		Long: `Values written as ENC[...] in fluxdnad.toml or options.toml are decrypted
when the daemon loads them. Pass "-" as the value to read it from stdin.`,
	}
	cmd.AddCommand(newSecretsKeygenCmd(), newSecretsEncryptCmd(), newSecretsDecryptCmd())
	return cmd
}

func newSecretsKeygenCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an age identity for the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = secrets.DefaultKeyPath()
			}
			if output == "" {
				return errors.New("no home directory; pass --output")
			}
			id, err := secrets.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := secrets.WriteKeyFile(output, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "identity: %s\nrecipient: %s\n", output, id.Recipient())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "identity file (default ~/.config/fluxdna/age.key)")
	return cmd
}

func newSecretsEncryptCmd() *cobra.Command {
	var recipientKeys []string

	cmd := &cobra.Command{
		Use:   "encrypt <value|->",
		Short: "Encrypt a value as ENC[...]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipients, err := encryptRecipients(recipientKeys)
			if err != nil {
				return err
			}
			value, err := argOrStdin(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			enc, err := secrets.Encrypt(value, recipients...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), enc)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&recipientKeys, "recipient", "r", nil, "age public key, repeatable (default: the resolved identity)")
	return cmd
}

func newSecretsDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <ENC[...]|->",
		Short: "Decrypt an ENC[...] value with the resolved identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := argOrStdin(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ids, err := secrets.ResolveIdentity(viper.New())
			if err != nil {
				return err
			}
			plain, err := secrets.Reveal(value, ids)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plain)
			return nil
		},
	}
}

// encryptRecipients parses keys, falling back to the public half of the
// resolved identity.
func encryptRecipients(keys []string) ([]age.Recipient, error) {
	if len(keys) > 0 {
		out := make([]age.Recipient, 0, len(keys))
		for _, k := range keys {
			r, err := age.ParseX25519Recipient(k)
			if err != nil {
				return nil, fmt.Errorf("recipient %q: %w", k, err)
			}
			out = append(out, r)
		}
		return out, nil
	}
	ids, err := secrets.ResolveIdentity(viper.New())
	if err != nil {
		return nil, err
	}
	out := secrets.Recipients(ids)
	if len(out) == 0 {
		return nil, errors.New("no age identity found; run 'fluxctl secrets keygen' or pass --recipient")
	}
	return out, nil
}

// argOrStdin returns arg, or the first line of in when arg is "-".
func argOrStdin(arg string, in io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty value on stdin")
	}
	return line, nil
}

