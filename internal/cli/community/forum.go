package community

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/utils"
)

type ForumCmd struct {
	Post      ForumPostCmd      `cmd:"" help:"Publish a post."`
	List      ForumListCmd      `cmd:"" help:"List posts, newest first." default:"1"`
	Show      ForumShowCmd      `cmd:"" help:"Show a post with its comments."`
	Like      ForumLikeCmd      `cmd:"" help:"Like a post."`
	Unlike    ForumUnlikeCmd    `cmd:"" help:"Take back a like."`
	Comment   ForumCommentCmd   `cmd:"" help:"Comment on a post."`
	Uncomment ForumUncommentCmd `cmd:"" help:"Remove a comment (administrator only)."`
	Delete    ForumDeleteCmd    `cmd:"" help:"Delete a post (author or administrator)."`
}

func open(ctx *cli.Context) (*forum.Service, *models.Identity, error) {
	who, err := ctx.Identity()
	if err != nil {
		return nil, nil, err
	}
	f := forum.New(ctx.Store, ctx.Policy(), ctx.Metrics)
	if err := f.Load(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to load posts: %w", err)
	}
	return f, who, nil
}

func resolve(f *forum.Service, ref string) (string, error) {
	return cli.ResolveID(cli.IDs(f.Items(), func(p models.Post) string { return p.ID }), ref)
}

func byline(author string, admin bool) string {
	if admin {
		return author + " (admin)"
	}
	return author
}

type ForumPostCmd struct {
	Title   string `short:"t" help:"Post title."`
	Content string `short:"c" help:"Post body (markdown). Prompted for when omitted."`
}

func (c *ForumPostCmd) Run(ctx *cli.Context) error {
	f, who, err := open(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Content) == "" {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Title").Value(&c.Title),
				huh.NewText().Title("Post").Value(&c.Content),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
	}
	id, err := f.Publish(context.Background(), who, c.Title, c.Content)
	if err != nil {
		return err
	}
	ctx.Printf("Published: %s (ID: %s)\n", c.Title, cli.ShortID(id))
	return nil
}

type ForumListCmd struct{}

func (c *ForumListCmd) Run(ctx *cli.Context) error {
	f, who, err := open(ctx)
	if err != nil {
		return err
	}
	posts := f.Items()
	if len(posts) == 0 {
		ctx.Println("No posts yet")
		return nil
	}
	for _, p := range posts {
		v := f.Present(p, who)
		heart := " "
		if v.LikedByViewer {
			heart = "♥"
		}
		ctx.Printf("  %s  %s\n      by %s, %s  %s %s, %s\n",
			cli.ShortID(p.ID), p.Title,
			byline(p.Author, v.AuthorIsAdmin), utils.Ago(p.CreatedAt),
			heart, humanize.Comma(int64(v.LikeCount))+" likes",
			humanize.Comma(int64(len(v.Comments)))+" comments")
	}
	return nil
}

type ForumShowCmd struct {
	ID    string `arg:"" help:"Post ID or prefix."`
	Width int    `help:"Wrap width." default:"80"`
}

func (c *ForumShowCmd) Run(ctx *cli.Context) error {
	f, who, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(f, c.ID)
	if err != nil {
		return err
	}
	p, err := f.Get(context.Background(), id)
	if err != nil {
		return err
	}
	v := f.Present(p, who)
	ctx.Printf("%s\nby %s, %s  (%d likes)\n\n", p.Title, byline(p.Author, v.AuthorIsAdmin), utils.Ago(p.CreatedAt), v.LikeCount)
	ctx.Println(ctx.RenderMarkdown(p.Content, c.Width))
	if len(v.Comments) > 0 {
		ctx.Println("\nComments:")
	}
	for i, cm := range v.Comments {
		ctx.Printf("  %d. %s: %s  (%s, %s)\n", i+1, byline(cm.Author, cm.AuthorIsAdmin), cm.Content, utils.Ago(cm.CreatedAt), cli.ShortID(cm.ID))
	}
	return nil
}

type ForumLikeCmd struct {
	ID string `arg:"" help:"Post ID or prefix."`
}

func (c *ForumLikeCmd) Run(ctx *cli.Context) error {
	f, who, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(f, c.ID)
	if err != nil {
		return err
	}
	p, err := f.Like(context.Background(), who, id)
	if err != nil {
		return err
	}
	ctx.Printf("Liked %q (%d likes)\n", p.Title, p.LikeCount())
	return nil
}

type ForumUnlikeCmd struct {
	ID string `arg:"" help:"Post ID or prefix."`
}

func (c *ForumUnlikeCmd) Run(ctx *cli.Context) error {
	f, who, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(f, c.ID)
	if err != nil {
		return err
	}
	p, err := f.Unlike(context.Background(), who, id)
	if err != nil {
		return err
	}
	ctx.Printf("Unliked %q (%d likes)\n", p.Title, p.LikeCount())
	return nil
}

type ForumCommentCmd struct {
	ID   string `arg:"" help:"Post ID or prefix."`
	Text string `arg:"" help:"Comment text."`
}

func (c *ForumCommentCmd) Run(ctx *cli.Context) error {
	f, who, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(f, c.ID)
	if err != nil {
		return err
	}
	cm, err := f.AddComment(context.Background(), who, id, c.Text)
	if err != nil {
		return err
	}
	ctx.Printf("Commented as %s (ID: %s)\n", cm.Author, cli.ShortID(cm.ID))
	return nil
}

type ForumUncommentCmd struct {
	ID      string `arg:"" help:"Post ID or prefix."`
	Comment string `arg:"" help:"Comment ID, prefix, or its 1-based position."`
}

func (c *ForumUncommentCmd) Run(ctx *cli.Context) error {
	f, who, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(f, c.ID)
	if err != nil {
		return err
	}
	p, err := f.Get(context.Background(), id)
	if err != nil {
		return err
	}
	commentID, err := commentRef(p, c.Comment)
	if err != nil {
		return err
	}
	if err := f.DeleteComment(context.Background(), who, id, commentID); err != nil {
		return err
	}
	ctx.Println("Comment removed")
	return nil
}

// commentRef accepts a position as shown by `forum show` or an id prefix.
func commentRef(p models.Post, ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(p.Comments) {
		return p.Comments[n-1].ID, nil
	}
	return cli.ResolveID(cli.IDs(p.Comments, func(c models.Comment) string { return c.ID }), ref)
}

type ForumDeleteCmd struct {
	ID string `arg:"" help:"Post ID or prefix."`
}

func (c *ForumDeleteCmd) Run(ctx *cli.Context) error {
	f, who, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(f, c.ID)
	if err != nil {
		return err
	}
	if err := f.DeletePost(context.Background(), who, id); err != nil {
		return err
	}
	ctx.Println("Post deleted")
	return nil
}
