package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/and161185/authkeeper/internal/api/authv1"
	"github.com/and161185/authkeeper/internal/errs"
	grpcserver "github.com/and161185/authkeeper/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type command func(ctx context.Context, args []string) error

// app carries what every subcommand needs.
type app struct {
	dial dialer
	out  io.Writer
}

func (a *app) commands() map[string]command {
	return map[string]command{
		"register":    a.register,
		"login":       a.login,
		"issue-code":  a.issueCode,
		"verify-code": a.verifyCode,
		"rotate":      a.rotate,
		"logout":      a.logout,
		"sessions":    a.sessions,
		"revoke-all":  a.revokeAll,
		"slug":        a.slug,
	}
}

// call dials, runs fn with a client and closes the connection.
func (a *app) call(bearer string, fn func(*authv1.Client) error) error {
	cc, err := a.dial(bearer)
	if err != nil {
		return err
	}
	defer func() { _ = cc.Close() }()
	return fn(authv1.NewClient(cc))
}

func parse(name string, args []string, def func(*flag.FlagSet)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	def(fs)
	return fs.Parse(args)
}

func (a *app) register(ctx context.Context, args []string) error {
	var u, e, p string
	if err := parse("register", args, func(fs *flag.FlagSet) {
		fs.StringVar(&u, "u", "", "username")
		fs.StringVar(&e, "e", "", "email")
		fs.StringVar(&p, "p", "", "password")
	}); err != nil {
		return err
	}
	if u == "" || e == "" || p == "" {
		return errors.New("need -u, -e and -p")
	}
	return a.call("", func(cl *authv1.Client) error {
		resp, err := cl.Register(ctx, &authv1.RegisterRequest{Username: u, Email: e, Password: p})
		if err != nil {
			return err
		}
		printJSON(a.out, resp.Identity)
		return nil
	})
}

func (a *app) login(ctx context.Context, args []string) error {
	var id, p string
	if err := parse("login", args, func(fs *flag.FlagSet) {
		fs.StringVar(&id, "id", "", "username or email")
		fs.StringVar(&p, "p", "", "password")
	}); err != nil {
		return err
	}
	if id == "" || p == "" {
		return errors.New("need -id and -p")
	}
	return a.call("", func(cl *authv1.Client) error {
		resp, err := cl.Login(ctx, &authv1.LoginRequest{Identifier: id, Password: p})
		if err != nil {
			return err
		}
		return a.saveLogin(resp)
	})
}

func (a *app) saveLogin(resp *authv1.LoginResponse) error {
	if err := saveSession(sessionFromLogin(resp)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "ok identity=%s session=%s\n", resp.Identity.ID, resp.SessionID)
	return nil
}

func (a *app) issueCode(ctx context.Context, args []string) error {
	var e string
	if err := parse("issue-code", args, func(fs *flag.FlagSet) {
		fs.StringVar(&e, "e", "", "email")
	}); err != nil {
		return err
	}
	if e == "" {
		return errors.New("need -e")
	}
	return a.call("", func(cl *authv1.Client) error {
		resp, err := cl.IssueCode(ctx, &authv1.IssueCodeRequest{Email: e})
		if err != nil {
			return err
		}
		printJSON(a.out, resp)
		return nil
	})
}

func (a *app) verifyCode(ctx context.Context, args []string) error {
	var req authv1.VerifyCodeRequest
	if err := parse("verify-code", args, func(fs *flag.FlagSet) {
		fs.StringVar(&req.Email, "e", "", "email")
		fs.StringVar(&req.Code, "code", "", "one-time code")
		fs.StringVar(&req.Username, "u", "", "username (optional)")
		fs.StringVar(&req.Password, "p", "", "password (optional)")
	}); err != nil {
		return err
	}
	if req.Email == "" || req.Code == "" {
		return errors.New("need -e and -code")
	}
	return a.call("", func(cl *authv1.Client) error {
		resp, err := cl.VerifyCode(ctx, &req)
		if err != nil {
			return err
		}
		return a.saveLogin(resp)
	})
}

// rotate exchanges the saved refresh token. A reuse rejection means every session of
// the identity is gone, so the saved one is dropped too.
func (a *app) rotate(ctx context.Context, _ []string) error {
	s, err := loadSession()
	if err != nil {
		return err
	}
	return a.call("", func(cl *authv1.Client) error {
		var md metadata.MD
		resp, err := cl.RotateToken(ctx, &authv1.RotateTokenRequest{
			IdentityID: s.IdentityID, SessionID: s.SessionID, RefreshToken: s.RefreshToken,
		}, grpc.Trailer(&md))
		if err != nil {
			if kind := md.Get(grpcserver.ErrorKindKey); len(kind) == 1 && kind[0] == string(errs.KindReuseDetected) {
				_ = clearSession()
			}
			return err
		}
		s.AccessToken, s.RefreshToken = resp.AccessToken, resp.RefreshToken
		s.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
		if err := saveSession(s); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "ok")
		return nil
	})
}

func (a *app) logout(ctx context.Context, _ []string) error {
	s, err := loadBearer()
	if err != nil {
		return err
	}
	return a.call(s.AccessToken, func(cl *authv1.Client) error {
		resp, err := cl.Logout(ctx, &authv1.LogoutRequest{IdentityID: s.IdentityID, SessionID: s.SessionID})
		if err != nil {
			return err
		}
		if err := clearSession(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, resp.Message)
		return nil
	})
}

func (a *app) sessions(ctx context.Context, _ []string) error {
	s, err := loadBearer()
	if err != nil {
		return err
	}
	return a.call(s.AccessToken, func(cl *authv1.Client) error {
		resp, err := cl.ListSessions(ctx, &authv1.ListSessionsRequest{IdentityID: s.IdentityID})
		if err != nil {
			return err
		}
		printJSON(a.out, resp.SessionIDs)
		return nil
	})
}

func (a *app) revokeAll(ctx context.Context, _ []string) error {
	s, err := loadBearer()
	if err != nil {
		return err
	}
	return a.call(s.AccessToken, func(cl *authv1.Client) error {
		resp, err := cl.RevokeAll(ctx, &authv1.RevokeAllRequest{IdentityID: s.IdentityID})
		if err != nil {
			return err
		}
		_ = clearSession()
		fmt.Fprintf(a.out, "revoked %d\n", resp.Revoked)
		return nil
	})
}

func (a *app) slug(ctx context.Context, args []string) error {
	var slug string
	if err := parse("slug", args, func(fs *flag.FlagSet) {
		fs.StringVar(&slug, "s", "", "slug id")
	}); err != nil {
		return err
	}
	if slug == "" {
		return errors.New("need -s")
	}
	return a.call("", func(cl *authv1.Client) error {
		resp, err := cl.GetIdentityBySlug(ctx, &authv1.GetIdentityBySlugRequest{Slug: slug})
		if err != nil {
			return err
		}
		printJSON(a.out, resp.Identity)
		return nil
	})
}
