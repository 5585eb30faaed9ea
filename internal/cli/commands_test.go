package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/passport/internal/breach"
	"github.com/dmitrijs2005/passport/internal/cli/config"
	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/cryptox"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	got    string
	result breach.Result
}

func (f *fakeChecker) Check(_ context.Context, password string) breach.Result {
	f.got = password
	return f.result
}

func newTestApp(checker BreachChecker) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{config: &config.Config{}, checker: checker, http: http.DefaultClient, out: &out}, &out
}

func testSalt(t *testing.T) string {
	t.Helper()
	salt, err := cryptox.NewVaultSalt()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(salt)
}

func TestNewApp(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()
	a := NewApp(c, logging.Nop())
	assert.NotNil(t, a.checker)
	assert.NotNil(t, a.reader)
}

func TestGenerate(t *testing.T) {
	a, out := newTestApp(nil)

	require.NoError(t, a.Exec(context.Background(), "generate", []string{"-length", "24", "-no-symbols"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], 24)
	assert.False(t, strings.ContainsAny(lines[0], "!@#$%^&*()_+-=[]{}|;:,.<>?"))
	assert.True(t, strings.HasPrefix(lines[1], "strength: "))

	err := a.Exec(context.Background(), "generate", []string{"-length", "4"})
	assert.ErrorIs(t, err, common.ErrorValidation)

	err = a.Exec(context.Background(), "generate", []string{"-no-upper", "-no-lower", "-no-digits", "-no-symbols"})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestAnalyze(t *testing.T) {
	stubPasswords(t, "password")
	a, out := newTestApp(nil)

	require.NoError(t, a.Exec(context.Background(), "analyze", nil))
	assert.Contains(t, out.String(), "strength: weak")
	assert.Contains(t, out.String(), "  - This is a commonly used password")
}

func TestBreach(t *testing.T) {
	stubPasswords(t, "hunter2", "hunter3")
	fc := &fakeChecker{result: breach.Result{IsCompromised: true, BreachCount: 3, Status: breach.StatusCompromised,
		Message: "This password has been seen 3 times in data breaches. Please change it immediately."}}
	a, out := newTestApp(fc)

	require.NoError(t, a.Exec(context.Background(), "breach", nil))
	assert.Equal(t, "hunter2", fc.got)
	assert.Contains(t, out.String(), "seen 3 times")

	fc.result = breach.Result{Status: breach.StatusUnknown, Message: breach.MessageUnknown}
	err := a.Exec(context.Background(), "breach", nil)
	assert.ErrorIs(t, err, common.ErrExternalService)
	assert.Contains(t, out.String(), breach.MessageUnknown)
}

func TestDeriveKey(t *testing.T) {
	salt := testSalt(t)
	stubPasswords(t, "correct horse", "correct horse", "correct horse")
	a, out := newTestApp(nil)

	require.NoError(t, a.Exec(context.Background(), "derive-key", []string{"-salt", salt}))
	first := out.String()
	out.Reset()
	require.NoError(t, a.Exec(context.Background(), "derive-key", []string{"-salt", salt}))
	assert.Equal(t, first, out.String(), "same password and salt give the same key")

	raw, err := base64.StdEncoding.DecodeString(salt)
	require.NoError(t, err)
	want := cryptox.DeriveVaultKey("correct horse", raw)
	assert.Contains(t, first, "vault key: "+want.String())

	out.Reset()
	require.NoError(t, a.Exec(context.Background(), "derive-key", nil))
	assert.True(t, strings.HasPrefix(out.String(), "salt: "), "a fresh salt is printed")

	err = a.Exec(context.Background(), "derive-key", []string{"-salt", "c2hvcnQ="})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestSealOpen(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "vault.json")
	sealed := filepath.Join(dir, "vault.enc")
	opened := filepath.Join(dir, "vault.out.json")
	require.NoError(t, os.WriteFile(plain, []byte(`{"items":[{"name":"mail","password":"p"}]}`), 0o600))
	salt := testSalt(t)

	stubPasswords(t, "master pw", "master pw", "wrong pw")
	a, _ := newTestApp(nil)
	ctx := context.Background()

	require.NoError(t, a.Exec(ctx, "seal", []string{"-salt", salt, "-in", plain, "-out", sealed}))
	token, err := os.ReadFile(sealed)
	require.NoError(t, err)
	assert.NotContains(t, string(token), "mail")

	require.NoError(t, a.Exec(ctx, "open", []string{"-salt", salt, "-in", sealed, "-out", opened}))
	got, err := os.ReadFile(opened)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"name":"mail","password":"p"}]}`, string(got))

	require.NoError(t, os.Remove(opened))
	err = a.Exec(ctx, "open", []string{"-salt", salt, "-in", sealed, "-out", opened})
	assert.ErrorIs(t, err, common.ErrIntegrity)
	assert.NoFileExists(t, opened)
}

func TestSeal_Validation(t *testing.T) {
	dir := t.TempDir()
	notJSON := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notJSON, []byte("plain text"), 0o600))
	a, _ := newTestApp(nil)
	ctx := context.Background()

	err := a.Exec(ctx, "seal", []string{"-in", notJSON})
	assert.ErrorIs(t, err, common.ErrorValidation)

	err = a.Exec(ctx, "seal", []string{"-salt", testSalt(t), "-in", notJSON, "-out", filepath.Join(dir, "x")})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestExec_UnknownAndHelp(t *testing.T) {
	a, out := newTestApp(nil)

	assert.ErrorIs(t, a.Exec(context.Background(), "frobnicate", nil), ErrUnknownCommand)
	require.NoError(t, a.Exec(context.Background(), "help", nil))
	assert.Contains(t, out.String(), "generate")
}

func TestUploadDownload(t *testing.T) {
	var stored []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
		case http.MethodGet:
			if stored == nil {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(stored)
		}
	}))
	defer ts.Close()

	dir := t.TempDir()
	plain := filepath.Join(dir, "vault.json")
	sealed := filepath.Join(dir, "vault.enc")
	back := filepath.Join(dir, "vault.back")
	require.NoError(t, os.WriteFile(plain, []byte(`{"items":[]}`), 0o600))
	require.NoError(t, os.WriteFile(sealed, []byte("gAAAAAB-not-json"), 0o600))

	a, out := newTestApp(nil)
	ctx := context.Background()

	err := a.Exec(ctx, "download", []string{"-url", ts.URL, "-out", back})
	assert.ErrorIs(t, err, common.ErrExternalService)

	err = a.Exec(ctx, "upload", []string{"-url", ts.URL, "-in", plain})
	assert.ErrorIs(t, err, common.ErrorValidation, "plaintext is refused")
	assert.Nil(t, stored)

	require.NoError(t, a.Exec(ctx, "upload", []string{"-url", ts.URL, "-in", sealed}))
	assert.Equal(t, "gAAAAAB-not-json", string(stored))

	require.NoError(t, a.Exec(ctx, "download", []string{"-url", ts.URL, "-out", back}))
	got, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.Contains(t, out.String(), "downloaded")

	err = a.Exec(ctx, "upload", []string{"-in", sealed})
	assert.ErrorIs(t, err, common.ErrorValidation)
}
