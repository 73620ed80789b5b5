// Command authkeeper is a CLI client for the authkeeper service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/authkeeper/internal/api/authv1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// ---- session store ----

type sessionFile struct {
	IdentityID   string    `json:"identity_id"`
	SessionID    string    `json:"session_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "authkeeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "authkeeper")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

func saveSession(s sessionFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sessionPath(), b, 0o600)
}

func loadSession() (sessionFile, error) {
	var s sessionFile
	b, err := os.ReadFile(sessionPath())
	if err != nil {
		return s, errors.New("no session (login required)")
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, err
	}
	if s.IdentityID == "" || s.SessionID == "" {
		return s, errors.New("no session (login required)")
	}
	return s, nil
}

// loadBearer returns the stored access token if it has not expired yet.
func loadBearer() (sessionFile, error) {
	s, err := loadSession()
	if err != nil {
		return s, err
	}
	if s.AccessToken == "" || time.Now().After(s.ExpiresAt) {
		return s, errors.New("access token expired (run rotate)")
	}
	return s, nil
}

func clearSession() error {
	err := os.Remove(sessionPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func sessionFromLogin(r *authv1.LoginResponse) sessionFile {
	return sessionFile{
		IdentityID:   r.Identity.ID,
		SessionID:    r.SessionID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    time.Unix(r.ExpiresAt, 0),
	}
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil // #nosec G402 -- dev flag
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// dialer opens a connection, attaching bearer to every call when non-empty.
type dialer func(bearer string) (*grpc.ClientConn, error)

func newDialer(addr, caPath string, skipVerify, plaintext bool) dialer {
	return func(bearer string) (*grpc.ClientConn, error) {
		var creds credentials.TransportCredentials
		if plaintext {
			creds = insecure.NewCredentials()
		} else {
			c, err := loadTLS(caPath, skipVerify)
			if err != nil {
				return nil, err
			}
			creds = c
		}
		opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
		if bearer != "" {
			opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !plaintext}))
		}
		return grpc.NewClient(addr, opts...)
	}
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `authkeeper CLI
Usage:
  authkeeper -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  register     -u <username> -e <email> -p <password>
  login        -id <username|email> -p <password>     (saves session)
  issue-code   -e <email>
  verify-code  -e <email> -code <code> [-u <username>] [-p <password>]   (saves session)
  rotate                                              (refreshes saved session)
  logout
  sessions
  revoke-all
  slug         -s <slug_id>
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	// global flags
	addr := flag.String("addr", "localhost:8443", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	skipVerify := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	if cmd == "version" {
		fmt.Printf("authkeeper %s (%s)\n", version, buildDate)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &app{dial: newDialer(*addr, *caPath, *skipVerify, *plaintext), out: os.Stdout}
	run, ok := a.commands()[cmd]
	if !ok {
		usage()
	}
	if err := run(ctx, flag.Args()[1:]); err != nil {
		fail(err)
	}
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
