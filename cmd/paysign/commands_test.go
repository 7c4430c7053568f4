package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SHA-512 of "199.00TXN-1s3cr3t", uppercase hex.
const knownHash = "25319250A38CE4B242BD0E33FBCE9D3A712A01C9228B0D50ED38E47C8638D33A5A3669E53F5D7CF2C3A5D63ECDB10B2C579ADE69DAC90D1ABD0859A0AB0236B9"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "")
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSignStdin(t *testing.T) {
	out, err := run(t, `{"reference":"TXN-1","amount":"199.00"}`, "sign", "--secret", "s3cr3t")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if strings.TrimSpace(out) != knownHash {
		t.Fatalf("unexpected hash %q", out)
	}
}

func TestSignInjectThenVerifyFile(t *testing.T) {
	out, err := run(t, `{"reference":"TXN-1","amount":199.50}`, "sign", "--secret", "s3cr3t", "--inject")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var signed map[string]any
	if err := json.Unmarshal([]byte(out), &signed); err != nil {
		t.Fatalf("decode signed payload: %v", err)
	}
	if _, ok := signed["hash"].(string); !ok {
		t.Fatalf("hash not injected: %s", out)
	}

	path := filepath.Join(t.TempDir(), "n.json")
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out, err := run(t, "", "verify", path, "--secret", "s3cr3t"); err != nil || strings.TrimSpace(out) != "OK" {
		t.Fatalf("verify: %v %q", err, out)
	}
	if _, err := run(t, "", "verify", path, "--secret", "other"); !errors.Is(err, errMismatch) {
		t.Fatalf("expected mismatch with wrong secret, got %v", err)
	}
}

func TestSecretRequired(t *testing.T) {
	if _, err := run(t, `{}`, "sign"); err == nil || !strings.Contains(err.Error(), "no secret") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestSecretFromEnv(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(`{"reference":"TXN-1","amount":"199.00"}`))
	cmd.SetArgs([]string{"sign"})
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "s3cr3t")
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if strings.TrimSpace(out.String()) != knownHash {
		t.Fatalf("unexpected hash %q", out.String())
	}
}
