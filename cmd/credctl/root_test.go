package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashThenVerify(t *testing.T) {
	t.Parallel()

	out, err := run(t, "Abcdef1!\n", "hash", "--work-factor", "4")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hash := strings.TrimSpace(out)
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected hash %q", hash)
	}

	out, err = run(t, "", "verify", "--hash", hash, "--secret", "Abcdef1!")
	if err != nil || strings.TrimSpace(out) != "match" {
		t.Fatalf("verify: out=%q err=%v", out, err)
	}

	out, err = run(t, "wrong\n", "verify", "--hash", hash)
	if !errors.Is(err, errNegative) || strings.TrimSpace(out) != "mismatch" {
		t.Fatalf("verify mismatch: out=%q err=%v", out, err)
	}
	if exitCode(err) != 1 {
		t.Fatalf("exitCode=%d want 1", exitCode(err))
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "verify", "--hash", "garbage", "--secret", "x")
	if !errors.Is(err, password.ErrVerificationFailure) {
		t.Fatalf("expected ErrVerificationFailure, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("exitCode=%d want 2", exitCode(err))
	}
}

func TestHash_NoSecret(t *testing.T) {
	t.Parallel()

	if _, err := run(t, "", "hash", "--work-factor", "4"); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	out, err := run(t, "", "check", "--secret", "Abcdef1!")
	if err != nil || strings.TrimSpace(out) != "ok" {
		t.Fatalf("strong: out=%q err=%v", out, err)
	}

	out, err = run(t, "password123\n", "check")
	if !errors.Is(err, errNegative) {
		t.Fatalf("expected negative result, got %v", err)
	}
	for _, msg := range []string{password.MsgNoUppercase, password.MsgNoSpecial, password.MsgCommonPattern} {
		if !strings.Contains(out, msg) {
			t.Fatalf("output missing %q: %q", msg, out)
		}
	}

	out, _ = run(t, "", "check", "--json", "--secret", "")
	if !strings.Contains(out, `"is_valid":false`) {
		t.Fatalf("unexpected JSON output %q", out)
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	out, err := run(t, "", "generate")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := strings.TrimSpace(out); len(got) != password.DefaultGenerateLength {
		t.Fatalf("default length: %q", got)
	}

	out, err = run(t, "", "generate", "-n", "20", "--strong")
	if err != nil {
		t.Fatalf("generate strong: %v", err)
	}
	if got := strings.TrimSpace(out); len(got) != 20 || !password.ValidateStrength(got).IsValid {
		t.Fatalf("expected strong 20-char secret, got %q", got)
	}

	if _, err := run(t, "", "generate", "-n", "4", "--strong"); !errors.Is(err, password.ErrGenerateExhausted) {
		t.Fatalf("expected ErrGenerateExhausted, got %v", err)
	}
}
