package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"valikoo/internal/adapter/rest"
	"valikoo/internal/domain/entity"
	"valikoo/internal/infrastructure/realtime"
	"valikoo/internal/messaging"
	"valikoo/internal/session"
	"valikoo/pkg/config"
	"valikoo/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := session.NewStore(cfg.SessionFile)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}

	// Stored dev overrides sit between env and defaults, like the web
	// client's localStorage API_BASE key.
	if cfg.APIBase == "" {
		cfg.APIBase = store.Override("api_base")
	}
	if cfg.WSBase == "" {
		cfg.WSBase = store.Override("ws_base")
	}
	if err := cfg.Finalize(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	api := rest.NewClient(cfg, store)

	command := "chat"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "login":
		runLogin(api, store, args)
	case "logout":
		if err := store.Clear(); err != nil {
			log.Fatalf("Logout failed: %v", err)
		}
		fmt.Println("Logged out.")
	case "products":
		runProducts(api, args)
	case "chat":
		runChat(cfg, api, store, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected login, logout, products or chat)\n", command)
		os.Exit(2)
	}
}

func runLogin(api *rest.Client, store *session.Store, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "request a long-lived token")
	fs.Parse(args)

	if *email == "" || *password == "" {
		log.Fatal("login requires -email and -password")
	}

	ctx := context.Background()
	result, err := api.Login(ctx, *email, *password, *remember)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	sess := session.Session{
		AccessToken: result.AccessToken,
		Role:        result.Role,
		Email:       result.Email,
	}
	if err := store.SetSession(sess); err != nil {
		log.Fatalf("Failed to persist session: %v", err)
	}

	// Resolve the user id now so the chat view can tell self from other.
	if user, err := api.Me(ctx); err == nil {
		sess.UserID = user.ID
		sess.User = user
		if err := store.SetSession(sess); err != nil {
			log.Fatalf("Failed to persist session: %v", err)
		}
	}
	fmt.Printf("Logged in as %s (%s)\n", result.Email, result.Role)
}

func runProducts(api *rest.Client, args []string) {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	query := fs.String("q", "", "search query")
	category := fs.String("category", "", "category filter")
	fs.Parse(args)

	products, err := api.ListProducts(context.Background(), rest.ProductQuery{Query: *query, Category: *category})
	if err != nil {
		log.Fatalf("Product search failed: %v", err)
	}
	for _, p := range products {
		price := ""
		if p.Price > 0 {
			price = fmt.Sprintf("  %.2f %s", p.Price, p.Currency)
		}
		fmt.Printf("%s  %s%s\n", p.ID, p.Title, price)
	}
	if len(products) == 0 {
		fmt.Println("No products found.")
	}
}

func runChat(cfg *config.Config, api *rest.Client, store *session.Store, args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	target := fs.String("conversation", "", "conversation id to open first")
	fs.Parse(args)

	sess := store.Session()
	if !sess.Valid() {
		log.Fatal("Not logged in (or token expired). Run: valikoo login -email ... -password ...")
	}

	// Keep stdout for the chat rendering; all log levels go to stderr.
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	self := entity.User{ID: sess.UserID, Email: sess.Email, Role: sess.Role}
	if user, err := api.Me(ctx); err == nil {
		self = *user
	} else {
		logger.Warn("could not refresh current user: %v", err)
	}

	channel := realtime.NewChannel(cfg.WebSocketURL(), func() string {
		return store.Session().AccessToken
	})
	messenger := messaging.NewMessenger(api, channel, self)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return messenger.Run(ctx)
	})

	if err := messenger.LoadConversations(ctx, *target); err != nil {
		logger.Error("failed to load conversations: %v", err)
	}

	view := &chatView{messenger: messenger, out: os.Stdout}
	g.Go(func() error {
		view.watch(ctx)
		return nil
	})

	view.render()
	view.repl(ctx, bufio.NewScanner(os.Stdin))
	stop()
	g.Wait()
}

// chatView is the terminal rendering of the messenger snapshots. It holds no
// state of its own beyond the scroll anchor.
type chatView struct {
	messenger *messaging.Messenger
	out       *os.File
}

// watch redraws whenever the engine signals a change.
func (v *chatView) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.messenger.Updates():
			v.render()
		}
	}
}

func (v *chatView) render() {
	st := v.messenger.Store()
	convs := st.Conversations()
	active := st.ActiveID()

	fmt.Fprintln(v.out)
	fmt.Fprintln(v.out, "== Conversations ==")
	if len(convs) == 0 {
		fmt.Fprintln(v.out, "  (none yet)")
	}
	for i, conv := range convs {
		marker := "  "
		if conv.ID == active {
			marker = "> "
		}
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf(" [%d]", conv.UnreadCount)
		}
		online := ""
		if conv.Other.IsOnline {
			online = " *"
		}
		product := ""
		if conv.Product != nil {
			product = " · " + conv.Product.Title
		}
		fmt.Fprintf(v.out, "%s%d. %s%s%s%s  %s\n", marker, i+1, displayName(conv), online, product, unread, truncate(conv.LastMessagePreview(), 40))
	}

	if active == "" {
		fmt.Fprintln(v.out, "Select a conversation with /open <n>.")
		return
	}

	fmt.Fprintln(v.out, "== Messages ==")
	msgs := st.Messages(active)
	if len(msgs) == 0 {
		replies := v.messenger.QuickReplies(active)
		for _, reply := range replies {
			fmt.Fprintf(v.out, "  suggested: %s\n", reply)
		}
		if replies == nil {
			fmt.Fprintln(v.out, "  (no messages yet)")
		}
		return
	}
	for _, msg := range msgs {
		who := "them"
		if entity.SameID(msg.SenderID, v.messenger.Self().ID) {
			who = "me"
		}
		status := ""
		if msg.Status == entity.MessageStatusSending {
			status = " …"
		} else if msg.Status == entity.MessageStatusFailed {
			status = " !failed (use /resend)"
		}
		fmt.Fprintf(v.out, "  [%s] %s%s\n", who, msg.Content, status)
	}
}

func (v *chatView) repl(ctx context.Context, scanner *bufio.Scanner) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/open "):
			v.open(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
		case line == "/resend":
			v.resend(ctx)
		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(v.out, "commands: /open <n>, /resend, /quit, or type a message")
		default:
			if _, err := v.messenger.Send(ctx, line, entity.MessageTypeText); err != nil {
				fmt.Fprintf(v.out, "send rejected: %v\n", err)
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (v *chatView) open(ctx context.Context, arg string) {
	convs := v.messenger.Store().Conversations()
	index, err := strconv.Atoi(arg)
	if err != nil || index < 1 || index > len(convs) {
		fmt.Fprintf(v.out, "no conversation %q\n", arg)
		return
	}
	if err := v.messenger.Select(ctx, convs[index-1].ID); err != nil {
		fmt.Fprintf(v.out, "open failed: %v\n", err)
	}
}

func (v *chatView) resend(ctx context.Context) {
	active := v.messenger.Store().ActiveID()
	for _, msg := range v.messenger.Store().Messages(active) {
		if msg.Status == entity.MessageStatusFailed {
			if err := v.messenger.Resend(ctx, msg.ID); err != nil {
				fmt.Fprintf(v.out, "resend failed: %v\n", err)
			}
			return
		}
	}
	fmt.Fprintln(v.out, "nothing to resend")
}

func displayName(conv entity.Conversation) string {
	if conv.Other.FullName != "" {
		return conv.Other.FullName
	}
	if conv.Other.Email != "" {
		return conv.Other.Email
	}
	return conv.ID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
