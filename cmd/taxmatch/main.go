package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"taxmatch/internal/blob"
	"taxmatch/internal/config"
	"taxmatch/internal/controller"
	"taxmatch/internal/gateway"
	"taxmatch/internal/lifecycle"
	"taxmatch/internal/session"
	"taxmatch/internal/state"
	"taxmatch/internal/util"
	"taxmatch/internal/view"
	"taxmatch/pkg/domain"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config file")
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	w := newWiring(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := run(ctx, w, flag.Args()); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

type wiring struct {
	controller *controller.Controller
	store      *state.Store
}

func newWiring(cfg config.FileConfig) *wiring {
	util.InitLogger(cfg.LogLevel)

	gw, err := buildGateway(cfg)
	if err != nil {
		log.Fatalf("failed to init gateway: %v", err)
	}
	var blobs blob.Store
	if cfg.MinioEndpoint != "" {
		blobs, err = blob.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioPublicURL, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init blob store: %v", err)
		}
	} else {
		blobs = blob.NewMemoryStore()
	}
	var sessions session.Store
	if cfg.RedisAddr != "" {
		sessions = session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, "")
	} else {
		sessions = session.NewMemoryStore()
	}

	store := state.New()
	ctrl, err := controller.New(controller.Config{
		Store:    store,
		Gateway:  gw,
		Blobs:    blobs,
		Sessions: sessions,
		Rules:    lifecycle.Rules{SingleProposalPerProvider: cfg.SingleProposalPerProvider},
	})
	if err != nil {
		log.Fatalf("failed to init controller: %v", err)
	}
	return &wiring{controller: ctrl, store: store}
}

func buildGateway(cfg config.FileConfig) (gateway.Gateway, error) {
	switch cfg.GatewayMode {
	case config.ModeHTTP:
		return gateway.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayAPIKey), nil
	case config.ModePostgres:
		ttl, err := config.ParseSessionTTL(cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		return gateway.NewGormGateway(cfg.DatabaseURL, cfg.JWTSecret, ttl)
	case config.ModeMemory:
		return gateway.NewMemoryGateway(), nil
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", cfg.GatewayMode)
	}
}

func run(ctx context.Context, w *wiring, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "signup":
		fs := flag.NewFlagSet("signup", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		name := fs.String("name", "", "display name")
		role := fs.String("role", string(domain.RoleSeeker), "seeker or provider")
		fs.Parse(rest)
		user, err := w.controller.SignUp(ctx, *email, *password, *name, domain.UserRole(*role))
		if err != nil {
			return err
		}
		return printJSON(user)
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		token := fs.String("token", "", "access token (instead of email/password)")
		fs.Parse(rest)
		var user domain.User
		var err error
		if *token != "" {
			user, err = w.controller.RestoreToken(ctx, *token)
		} else {
			user, err = w.controller.SignIn(ctx, *email, *password)
		}
		if err != nil {
			return err
		}
		return printJSON(user)
	case "dashboard":
		fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
		status := fs.String("status", string(domain.StatusOpen), "open, in_progress, or completed")
		fs.Parse(rest)
		if err := restoreSession(ctx, w); err != nil {
			return err
		}
		if err := w.controller.FetchDashboard(ctx); err != nil {
			return err
		}
		snap := w.store.Requests.Snapshot()
		return printJSON(view.Project(snap.Items, domain.RequestStatus(*status)))
	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		id := fs.String("id", "", "request id")
		fs.Parse(rest)
		if err := restoreSession(ctx, w); err != nil {
			return err
		}
		request, err := w.controller.FetchRequestDetail(ctx, *id)
		if err != nil {
			return err
		}
		if err := w.controller.FetchMessages(ctx, *id); err != nil {
			return err
		}
		if err := printJSON(request); err != nil {
			return err
		}
		return printJSON(w.store.Messages.Snapshot().Items)
	case "send":
		fs := flag.NewFlagSet("send", flag.ExitOnError)
		id := fs.String("id", "", "request id")
		content := fs.String("message", "", "message content")
		fs.Parse(rest)
		if err := restoreSession(ctx, w); err != nil {
			return err
		}
		if err := w.controller.SendMessage(ctx, *id, *content); err != nil {
			return err
		}
		return printJSON(w.store.Messages.Snapshot().Items)
	case "propose":
		fs := flag.NewFlagSet("propose", flag.ExitOnError)
		id := fs.String("id", "", "request id")
		amount := fs.Float64("amount", 0, "proposal amount")
		message := fs.String("message", "", "proposal message")
		fs.Parse(rest)
		if err := restoreSession(ctx, w); err != nil {
			return err
		}
		return w.controller.SubmitProposal(ctx, *id, *amount, *message)
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		title := fs.String("title", "", "request title")
		description := fs.String("description", "", "request description")
		category := fs.String("category", "", "request category")
		budgetMin := fs.Float64("budget-min", 0, "minimum budget")
		budgetMax := fs.Float64("budget-max", 0, "maximum budget")
		deadline := fs.String("deadline", "", "deadline (YYYY-MM-DD)")
		fs.Parse(rest)
		if err := restoreSession(ctx, w); err != nil {
			return err
		}
		due, err := time.Parse("2006-01-02", *deadline)
		if err != nil {
			return fmt.Errorf("invalid deadline: %w", err)
		}
		files, err := readDocuments(fs.Args())
		if err != nil {
			return err
		}
		request, err := w.controller.CreateRequest(ctx, domain.RequestInput{
			Title:       *title,
			Description: *description,
			Category:    *category,
			Budget:      domain.Budget{Min: *budgetMin, Max: *budgetMax},
			Deadline:    due,
		}, files)
		if err != nil {
			return err
		}
		return printJSON(request)
	case "logout":
		return w.controller.SignOut(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func restoreSession(ctx context.Context, w *wiring) error {
	_, ok, err := w.controller.Restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not signed in (run login first)")
	}
	return nil
}

func readDocuments(paths []string) ([]controller.Document, error) {
	files := make([]controller.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", p, err)
		}
		files = append(files, controller.Document{Name: p, Content: data, ContentType: "application/octet-stream"})
	}
	return files, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: taxmatch [-config path] <signup|login|logout|dashboard|show|create|send|propose> [flags]")
}
