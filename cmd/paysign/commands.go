package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cipcagent/internal/signature"
)

var errMismatch = errors.New("signature mismatch")

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the signature of a JSON notification (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretFlag(cmd)
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			hash, err := signature.Sign(payload, secret)
			if err != nil {
				return err
			}

			inject, _ := cmd.Flags().GetBool("inject")
			if !inject {
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			}
			payload[signature.HashField] = hash
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
	cmd.Flags().BoolP("inject", "i", false, "print the payload with the hash field set instead of the bare hash")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [file]",
		Short: "Check the hash field of a JSON notification",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretFlag(cmd)
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			if !signature.Verify(payload, secret) {
				expected, _ := signature.Sign(payload, secret)
				fmt.Fprintf(cmd.OutOrStdout(), "INVALID\nexpected: %s\n", expected)
				return errMismatch
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func secretFlag(cmd *cobra.Command) (string, error) {
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv("PAYMENT_WEBHOOK_SECRET")
	}
	if secret == "" {
		return "", errors.New("no secret: pass --secret or set PAYMENT_WEBHOOK_SECRET")
	}
	return secret, nil
}

// readPayload keeps numbers as json.Number so they sign with the text the
// provider sent.
func readPayload(cmd *cobra.Command, args []string) (map[string]any, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if payload == nil {
		return nil, errors.New("payload must be a JSON object")
	}
	return payload, nil
}
