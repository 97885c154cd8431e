// Package activityctl parses activityctl flags and runs roster commands.
package activityctl

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/gathering.space/internal/platform/cmd"
	"github.com/louisbranch/gathering.space/internal/services/activity/app"
	"github.com/louisbranch/gathering.space/internal/services/activity/domain"
	"github.com/louisbranch/gathering.space/internal/services/activity/storage"
	badgerstore "github.com/louisbranch/gathering.space/internal/services/activity/storage/badger"
	bboltstore "github.com/louisbranch/gathering.space/internal/services/activity/storage/bbolt"
)

// Config holds activityctl command configuration.
type Config struct {
	DBPath  string `env:"GATHERING_SPACE_DB_PATH" envDefault:"data/gathering.space.db"`
	Backend string `env:"GATHERING_SPACE_STORAGE_BACKEND" envDefault:"bbolt"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the activity database")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: bbolt or badger")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes one activityctl subcommand against the configured store.
func Run(ctx context.Context, cfg Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("a subcommand is required: create, show, request-join, join, accept, remove, leave, resize, pay")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	service := app.NewService(store, nil, nil, nil)

	switch args[0] {
	case "create":
		return runCreate(ctx, service, args[1:])
	case "show":
		return runShow(ctx, service, store, args[1:])
	case "request-join":
		return runMemberOp(ctx, args[1:], func(activityID, userID string) (app.Result, error) {
			return service.RequestJoin(ctx, activityID, userID)
		})
	case "join":
		return runMemberOp(ctx, args[1:], func(activityID, userID string) (app.Result, error) {
			return service.DirectJoin(ctx, activityID, userID)
		})
	case "leave":
		return runMemberOp(ctx, args[1:], func(activityID, userID string) (app.Result, error) {
			return service.Leave(ctx, activityID, userID)
		})
	case "accept":
		return runModerationOp(ctx, args[1:], func(activityID, actingUserID, targetUserID string) (app.Result, error) {
			return service.AcceptRequest(ctx, activityID, actingUserID, targetUserID)
		})
	case "remove":
		return runModerationOp(ctx, args[1:], func(activityID, actingUserID, targetUserID string) (app.Result, error) {
			return service.RemoveParticipant(ctx, activityID, actingUserID, targetUserID)
		})
	case "resize":
		return runResize(ctx, service, args[1:])
	case "pay":
		return runPay(ctx, store, args[1:])
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func openStore(cfg Config) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "bbolt":
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := bboltstore.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open bbolt store: %w", err)
		}
		return store, nil
	case "badger":
		store, err := badgerstore.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func runCreate(ctx context.Context, service *app.Service, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner user id")
	title := fs.String("title", "", "activity title")
	capacity := fs.Int("capacity", 0, "maximum active participants")
	priced := fs.Bool("priced", false, "admission requires a captured payment")
	startsAt := fs.String("starts-at", "", "activity start time (RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input := domain.CreateActivityInput{
		OwnerID:  *owner,
		Title:    *title,
		Capacity: *capacity,
		Priced:   *priced,
	}
	if *startsAt != "" {
		parsed, err := time.Parse(time.RFC3339, *startsAt)
		if err != nil {
			return fmt.Errorf("parse starts-at: %w", err)
		}
		input.StartsAt = parsed.UTC()
	}

	activity, err := service.CreateActivity(ctx, input)
	if err != nil {
		return err
	}
	return printJSON(activity)
}

func runShow(ctx context.Context, service *app.Service, store storage.Store, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	activityID := fs.String("activity", "", "activity id")
	user := fs.String("user", "", "include reward/payment state for this user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	activity, err := service.GetActivity(ctx, *activityID)
	if err != nil {
		return err
	}

	view := struct {
		Activity domain.Activity
		Reward   *storage.RewardEntry `json:",omitempty"`
		Paid     *bool                `json:",omitempty"`
	}{Activity: activity}

	if *user != "" {
		if entry, err := store.GetRewardEntry(ctx, *user, activity.ID, domain.RewardTypeJoin); err == nil {
			view.Reward = &entry
		}
		paid, err := store.HasPaymentFact(ctx, *user, activity.ID)
		if err != nil {
			return err
		}
		view.Paid = &paid
	}
	return printJSON(view)
}

func runMemberOp(_ context.Context, args []string, op func(activityID, userID string) (app.Result, error)) error {
	fs := flag.NewFlagSet("member", flag.ContinueOnError)
	activityID := fs.String("activity", "", "activity id")
	user := fs.String("user", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := op(*activityID, *user)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runModerationOp(_ context.Context, args []string, op func(activityID, actingUserID, targetUserID string) (app.Result, error)) error {
	fs := flag.NewFlagSet("moderation", flag.ContinueOnError)
	activityID := fs.String("activity", "", "activity id")
	acting := fs.String("as", "", "acting user id (must be the owner)")
	target := fs.String("user", "", "target user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := op(*activityID, *acting, *target)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runResize(ctx context.Context, service *app.Service, args []string) error {
	fs := flag.NewFlagSet("resize", flag.ContinueOnError)
	activityID := fs.String("activity", "", "activity id")
	acting := fs.String("as", "", "acting user id (must be the owner)")
	capacity := fs.Int("capacity", 0, "new maximum active participants")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := service.ResizeCapacity(ctx, *activityID, *acting, *capacity)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runPay(ctx context.Context, store storage.Store, args []string) error {
	fs := flag.NewFlagSet("pay", flag.ContinueOnError)
	activityID := fs.String("activity", "", "activity id")
	user := fs.String("user", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fact := storage.PaymentFact{
		UserID:     strings.TrimSpace(*user),
		ActivityID: strings.TrimSpace(*activityID),
		CapturedAt: time.Now().UTC(),
	}
	if err := store.PutPaymentFact(ctx, fact); err != nil {
		return err
	}
	return printJSON(fact)
}

func printJSON(value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(payload))
	return nil
}
