// Command engage drives the engagement coordinator against a running
// gateway, printing every optimistic state change as it happens.
//
//	engage [flags] like <item>
//	engage [flags] status <item>...
//	engage [flags] comments <item>
//	engage [flags] comment <item> <text>...
//	engage [flags] uncomment <item> <comment-id>
//	engage [flags] session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"gallery/internal/config"
	"gallery/internal/engagement"
	"gallery/internal/logger"
	"gallery/internal/session"

	_ "github.com/joho/godotenv/autoload"
)

var errUsage = errors.New("usage")

type options struct {
	gateway   string
	sessionID string
	userID    string
	name      string
	timeout   time.Duration
	ttl       time.Duration
}

func main() {
	log := logger.New("engage")
	logger.SetDefault(log)

	opts := options{}
	fs := flag.NewFlagSet("engage", flag.ExitOnError)
	fs.StringVar(&opts.gateway, "gateway", config.GetEnvOrDefault("GATEWAY_URL", "http://localhost:8080/api"), "gateway API base URL")
	fs.StringVar(&opts.sessionID, "session", config.GetEnvOrDefault("ENGAGE_SESSION_ID", ""), "session cookie value")
	fs.StringVar(&opts.userID, "user", config.GetEnvOrDefault("ENGAGE_USER_ID", ""), "signed-in user id")
	fs.StringVar(&opts.name, "name", config.GetEnvOrDefault("ENGAGE_DISPLAY_NAME", ""), "signed-in display name")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	fs.DurationVar(&opts.ttl, "ttl", 24*time.Hour, "lifetime of sessions created by the session command")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: engage [flags] like|status|comments|comment|uncomment|session [args]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, log, opts, fs.Args(), os.Stdout)
	if errors.Is(err, errUsage) {
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("engage failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, opts options, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	if cmd == "session" {
		return createSession(ctx, opts, out)
	}

	remote, err := engagement.NewHTTPRemote(opts.gateway, engagement.WithSessionCookie(session.CookieName, opts.sessionID))
	if err != nil {
		return err
	}
	o := engagement.DefaultOptions()
	o.RemoteTimeout = opts.timeout
	coord := engagement.NewCoordinator(engagement.NewCache(), remote, log, o)
	id := engagement.Identity{UserID: opts.userID, DisplayName: opts.name}

	switch cmd {
	case "like":
		if len(args) != 1 {
			return errUsage
		}
		return like(ctx, coord, id, args[0], out)
	case "status":
		if len(args) == 0 {
			return errUsage
		}
		states := coord.RefreshLikes(ctx, id, args)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ITEM\tLIKES\tLIKED")
		for _, item := range args {
			st := states[item]
			fmt.Fprintf(tw, "%s\t%d\t%t\n", item, st.Count, st.Liked)
		}
		return tw.Flush()
	case "comments":
		if len(args) != 1 {
			return errUsage
		}
		list, res := coord.LoadComments(ctx, args[0])
		if !res.Success {
			fmt.Fprintf(out, "warning: %s (showing cached comments)\n", res.Message)
		}
		printComments(out, coord, id, list)
		return nil
	case "comment":
		if len(args) < 2 {
			return errUsage
		}
		return comment(ctx, coord, id, args[0], strings.Join(args[1:], " "), out)
	case "uncomment":
		if len(args) != 2 {
			return errUsage
		}
		return report(out, coord.DeleteComment(ctx, id, args[0], args[1]), "comment deleted")
	}
	return errUsage
}

func like(ctx context.Context, coord *engagement.Coordinator, id engagement.Identity, item string, out io.Writer) error {
	coord.LikeStatus(ctx, id, item)
	unsubscribe := coord.Cache().SubscribeLikes(item, func(e engagement.Entry) {
		fmt.Fprintf(out, "%-8s likes=%d liked=%t\n", e.Phase, e.Count, e.Liked)
	})
	defer unsubscribe()

	res := coord.ToggleLike(ctx, id, item)
	if e, ok := coord.Cache().Get(item); ok {
		fmt.Fprintf(out, "%-8s likes=%d liked=%t\n", e.LastOutcome, e.Count, e.Liked)
	}
	return report(out, res, "")
}

func comment(ctx context.Context, coord *engagement.Coordinator, id engagement.Identity, item, body string, out io.Writer) error {
	coord.LoadComments(ctx, item)
	unsubscribe := coord.Cache().SubscribeComments(item, func(list []engagement.Comment) {
		fmt.Fprintf(out, "comments=%d\n", len(list))
	})
	defer unsubscribe()

	saved, res := coord.SubmitComment(ctx, id, item, body)
	if res.Success {
		fmt.Fprintf(out, "posted %s as %s\n", saved.ID, coord.AuthorLabel(saved, id))
	}
	return report(out, res, "")
}

func printComments(out io.Writer, coord *engagement.Coordinator, id engagement.Identity, list []engagement.Comment) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tWHEN\tTEXT")
	for _, cm := range list {
		author := coord.AuthorLabel(cm, id)
		if coord.CanDelete(cm, id) {
			author += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cm.ID, author, cm.CreatedAt.Local().Format(time.DateTime), cm.Body)
	}
	_ = tw.Flush()
}

func report(out io.Writer, res engagement.Result, ok string) error {
	switch {
	case res.Ignored:
		fmt.Fprintln(out, res.Message)
		return nil
	case res.Success:
		if ok != "" {
			fmt.Fprintln(out, ok)
		}
		return nil
	case res.Retryable:
		return fmt.Errorf("%s (retry later)", res.Message)
	}
	return errors.New(res.Message)
}

// createSession writes a session straight into Redis for local testing; in
// production the identity provider's webhook does this.
func createSession(ctx context.Context, opts options, out io.Writer) error {
	if opts.userID == "" {
		return fmt.Errorf("%w: -user is required", errUsage)
	}
	store, err := session.NewRedisStore(ctx, session.RedisConfigFromEnv())
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := session.NewManager(store).Create(ctx, opts.userID, opts.name, opts.ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "export ENGAGE_SESSION_ID=%s ENGAGE_USER_ID=%s\n", s.ID, s.UserID)
	return nil
}
