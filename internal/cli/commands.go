package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/cryptox"
	"github.com/dmitrijs2005/passport/internal/netx"
	"github.com/dmitrijs2005/passport/internal/passwords"
)

// ErrUnknownCommand is returned by Exec for a command it does not know.
var ErrUnknownCommand = errors.New("unknown command")

const usage = "Available commands: generate, analyze, breach, derive-key, seal, open, upload, download, help, exit"

// Exec runs a single command.
func (a *App) Exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "generate":
		return a.Generate(args)
	case "analyze":
		return a.Analyze()
	case "breach":
		return a.Breach(ctx)
	case "derive-key":
		return a.DeriveKey(args)
	case "seal":
		return a.Seal(args)
	case "open":
		return a.Open(args)
	case "upload":
		return a.Upload(ctx, args)
	case "download":
		return a.Download(ctx, args)
	case "help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func newFlagSet(name string, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	return fs
}

func (a *App) Generate(args []string) error {
	opts := passwords.DefaultOptions()

	fs := newFlagSet("generate", a.out)
	fs.IntVar(&opts.Length, "length", opts.Length, "password length")
	noUpper := fs.Bool("no-upper", false, "exclude uppercase letters")
	noLower := fs.Bool("no-lower", false, "exclude lowercase letters")
	noDigits := fs.Bool("no-digits", false, "exclude digits")
	noSymbols := fs.Bool("no-symbols", false, "exclude symbols")
	fs.BoolVar(&opts.ExcludeAmbiguous, "exclude-ambiguous", false, "exclude look-alike characters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.Uppercase = !*noUpper
	opts.Lowercase = !*noLower
	opts.Digits = !*noDigits
	opts.Symbols = !*noSymbols

	pw, err := passwords.Generate(opts)
	if err != nil {
		return err
	}
	an := passwords.Analyze(pw)
	fmt.Fprintln(a.out, pw)
	fmt.Fprintf(a.out, "strength: %s (%d/10)\n", an.Strength, an.Score)
	return nil
}

func (a *App) Analyze() error {
	pw, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	an := passwords.Analyze(string(pw))
	fmt.Fprintf(a.out, "strength: %s (%d/10)\n", an.Strength, an.Score)
	for _, f := range an.Feedback {
		fmt.Fprintf(a.out, "  - %s\n", f)
	}
	return nil
}

func (a *App) Breach(ctx context.Context) error {
	pw, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	res := a.checker.Check(ctx, string(pw))
	fmt.Fprintln(a.out, res.Message)
	if !res.Completed() {
		return fmt.Errorf("%w: breach lookup did not complete", common.ErrExternalService)
	}
	return nil
}

// DeriveKey prints the vault key for a master password. Without -salt a new
// salt is generated and printed first.
func (a *App) DeriveKey(args []string) error {
	fs := newFlagSet("derive-key", a.out)
	saltB64 := fs.String("salt", "", "vault salt (standard base64)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var salt []byte
	var err error
	if *saltB64 == "" {
		if salt, err = cryptox.NewVaultSalt(); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "salt: %s\n", base64.StdEncoding.EncodeToString(salt))
	} else if salt, err = decodeSalt(*saltB64); err != nil {
		return err
	}

	key, err := a.vaultKey(salt)
	if err != nil {
		return err
	}
	defer key.Wipe()
	fmt.Fprintf(a.out, "vault key: %s\n", key.String())
	return nil
}

// Seal encrypts a JSON document with the vault key.
func (a *App) Seal(args []string) error {
	salt, in, out, err := a.fileArgs("seal", args)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(data)
	if !json.Valid(data) {
		return fmt.Errorf("%w: %s is not a JSON document", common.ErrorValidation, in)
	}

	c, wipe, err := a.vaultCipher(salt)
	if err != nil {
		return err
	}
	defer wipe()

	token, err := c.SealJSON(json.RawMessage(data))
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, token, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "sealed %s -> %s\n", in, out)
	return nil
}

// Open reverses Seal. A wrong master password or a tampered file yields
// common.ErrIntegrity and nothing is written.
func (a *App) Open(args []string) error {
	salt, in, out, err := a.fileArgs("open", args)
	if err != nil {
		return err
	}
	token, err := os.ReadFile(in)
	if err != nil {
		return err
	}

	c, wipe, err := a.vaultCipher(salt)
	if err != nil {
		return err
	}
	defer wipe()

	var doc json.RawMessage
	if err := c.OpenJSON([]byte(strings.TrimSpace(string(token))), &doc); err != nil {
		return err
	}
	defer common.WipeByteArray(doc)
	if err := os.WriteFile(out, doc, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "opened %s -> %s\n", in, out)
	return nil
}

func (a *App) urlArgs(name, fileFlag string, args []string) (url, file string, err error) {
	fs := newFlagSet(name, a.out)
	fs.StringVar(&url, "url", "", "presigned URL")
	fs.StringVar(&file, fileFlag, "", "sealed vault file")
	if err = fs.Parse(args); err != nil {
		return "", "", err
	}
	if url == "" || file == "" {
		return "", "", fmt.Errorf("%w: -url and -%s are required", common.ErrorValidation, fileFlag)
	}
	return url, file, nil
}

// Upload sends a sealed vault file to a presigned upload URL. Only sealed
// files are accepted so plaintext never leaves the machine.
func (a *App) Upload(ctx context.Context, args []string) error {
	url, in, err := a.urlArgs("upload", "in", args)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if json.Valid(data) {
		return fmt.Errorf("%w: %s looks like plaintext JSON, seal it first", common.ErrorValidation, in)
	}
	if err := netx.UploadToPresignedURL(ctx, a.http, url, data); err != nil {
		return fmt.Errorf("%w: %w", common.ErrExternalService, err)
	}
	fmt.Fprintf(a.out, "uploaded %s (%d bytes)\n", in, len(data))
	return nil
}

// Download fetches a sealed vault file from a presigned download URL.
func (a *App) Download(ctx context.Context, args []string) error {
	url, out, err := a.urlArgs("download", "out", args)
	if err != nil {
		return err
	}
	data, err := netx.DownloadFromPresignedURL(ctx, a.http, url)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrExternalService, err)
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "downloaded %s (%d bytes)\n", out, len(data))
	return nil
}

func (a *App) fileArgs(name string, args []string) (salt []byte, in, out string, err error) {
	fs := newFlagSet(name, a.out)
	saltB64 := fs.String("salt", "", "vault salt (standard base64)")
	fs.StringVar(&in, "in", "", "input file")
	fs.StringVar(&out, "out", "", "output file")
	if err = fs.Parse(args); err != nil {
		return nil, "", "", err
	}
	if *saltB64 == "" || in == "" || out == "" {
		return nil, "", "", fmt.Errorf("%w: -salt, -in and -out are required", common.ErrorValidation)
	}
	salt, err = decodeSalt(*saltB64)
	return salt, in, out, err
}

func (a *App) vaultKey(salt []byte) (cryptox.VaultKey, error) {
	pw, err := GetPassword(a.out, "Master password")
	if err != nil {
		return cryptox.VaultKey{}, err
	}
	defer common.WipeByteArray(pw)
	return cryptox.DeriveVaultKey(string(pw), salt), nil
}

func (a *App) vaultCipher(salt []byte) (*cryptox.VaultCipher, func(), error) {
	key, err := a.vaultKey(salt)
	if err != nil {
		return nil, nil, err
	}
	c, err := cryptox.NewVaultCipher(key)
	if err != nil {
		key.Wipe()
		return nil, nil, err
	}
	return c, key.Wipe, nil
}

func decodeSalt(s string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(salt) != common.VaultSaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes of standard base64", common.ErrorValidation, common.VaultSaltSize)
	}
	return salt, nil
}
