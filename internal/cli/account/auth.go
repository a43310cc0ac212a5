package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/profile"
)

type AuthCmd struct {
	Login  LoginCmd  `cmd:"" help:"Sign in with an e-mail address."`
	Logout LogoutCmd `cmd:"" help:"Sign out."`
	Whoami WhoamiCmd `cmd:"" help:"Show the signed-in user." default:"1"`
}

type LoginCmd struct {
	Email string `required:"" help:"E-mail address."`
	Name  string `help:"Display name shown on posts and comments."`
}

func (c *LoginCmd) Run(ctx *cli.Context) error {
	if ctx.Session == nil {
		return errors.New("sessions are not available")
	}
	id, err := ctx.Session.SignIn(c.Email, c.Name)
	if err != nil {
		return err
	}
	if _, err := profile.Ensure(context.Background(), ctx.Store, id); err != nil {
		return fmt.Errorf("signed in, but failed to update profile: %w", err)
	}
	ctx.Printf("Signed in as %s\n", id.Email)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *cli.Context) error {
	if ctx.Session == nil || ctx.Session.Current() == nil {
		ctx.Println("Not signed in")
		return nil
	}
	if err := ctx.Session.SignOut(); err != nil {
		return err
	}
	ctx.Println("Signed out")
	return nil
}

type WhoamiCmd struct {
	Token bool `help:"Print the session token for use as an API bearer token."`
}

func (c *WhoamiCmd) Run(ctx *cli.Context) error {
	who, err := ctx.Identity()
	if err != nil {
		return err
	}
	if c.Token {
		tok, ok := ctx.Session.(interface{ Token() string })
		if !ok || tok.Token() == "" {
			return auth.ErrNotSignedIn
		}
		ctx.Println(tok.Token())
		return nil
	}

	p, err := profile.Get(context.Background(), ctx.Store, who.UID)
	if err != nil {
		return err
	}
	ctx.Printf("Email:   %s\n", who.Email)
	ctx.Printf("Name:    %s\n", who.AuthorName())
	ctx.Printf("UID:     %s\n", who.UID)
	if ctx.Policy().IsAdmin(who.Email) {
		ctx.Println("Role:    administrator")
	}
	if p != nil {
		ctx.Printf("Member since %s\n", p.CreatedAt.In(ctx.Location()).Format("2006-01-02"))
	}
	return nil
}
