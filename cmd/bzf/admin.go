package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/billing"
	"github.com/bravozulu-films/bzf/internal/database"
	"github.com/bravozulu-films/bzf/internal/notify"
	"github.com/bravozulu-films/bzf/internal/user"
	"github.com/bravozulu-films/bzf/internal/verification"
)

// adminEnv is what the operator commands share.
type adminEnv struct {
	log      *zap.SugaredLogger
	db       *database.DB
	users    *user.Store
	notifier *notify.Notifier
	close    func()
}

// openAdmin connects like serve does. Notifications go through Redis
// when configured so members online on a running instance see them.
func openAdmin(ctx context.Context) (*adminEnv, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	cfg, db, err := setup(ctx, log)
	if err != nil {
		return nil, err
	}

	var pub notify.Publisher = notify.NewHub(log)
	closeRelay := func() {}
	if cfg.RedisURL != "" {
		relay, err := notify.NewRedisRelay(ctx, cfg.RedisURL, nil, log)
		if err != nil {
			log.Warnw("redis unavailable, notifications will not be pushed", "error", err)
		} else {
			pub = relay
			closeRelay = func() { _ = relay.Close() }
		}
	}

	return &adminEnv{
		log:      log,
		db:       db,
		users:    user.NewStore(db),
		notifier: notify.NewNotifier(notify.NewStore(db), pub, log),
		close: func() {
			closeRelay()
			db.Close()
			_ = log.Sync()
		},
	}, nil
}

func grantCreditsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-credits <email> <amount> [reason]",
		Short: "Credit a member's account",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 || amount > billing.MaxGrant {
				return fmt.Errorf("amount must be a whole number between 1 and %d", billing.MaxGrant)
			}
			reason := "Granted by an administrator"
			if len(args) == 3 {
				reason = args[2]
			}

			ctx := cmd.Context()
			env, err := openAdmin(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			u, err := env.users.GetByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			bill := billing.NewStore(env.db, nil)
			tx, err := bill.Grant(ctx, u.ID, amount, reason)
			if err != nil {
				return err
			}
			balance, err := bill.Balance(ctx, u.ID)
			if err != nil {
				return err
			}
			env.notifier.Notify(ctx, notify.Input{
				UserID: u.ID,
				Kind:   notify.KindCredits,
				Title:  fmt.Sprintf("You received %d credits", amount),
				Body:   tx.Note,
				Link:   "/billing",
			})
			fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s (balance %d)\n", amount, u.Username, balance)
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <email> <approve|reject> [note]",
		Short: "Decide a member's pending military verification",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision := strings.ToLower(args[1])
			if _, err := verification.Outcome(decision); err != nil {
				return err
			}
			var note string
			if len(args) == 3 {
				note = args[2]
			}

			ctx := cmd.Context()
			env, err := openAdmin(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			u, err := env.users.GetByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			req, err := verification.NewStore(env.db).Decide(ctx, u.ID, 0, decision, note)
			if err != nil {
				return err
			}

			title := "Verification not approved"
			if req.Status == user.VerificationApproved {
				title = "You're verified"
				added, a, err := achievement.NewStore(env.db).Award(ctx, u.ID, achievement.Verified)
				if err != nil {
					env.log.Errorw("award achievement", "user_id", u.ID, "error", err)
				} else if added {
					env.notifier.Notify(ctx, notify.Input{
						UserID: u.ID, Kind: notify.KindAchievement,
						Title: "Achievement unlocked: " + a.Name, Body: a.Description,
						Link: "/profile/achievements",
					})
				}
			}
			env.notifier.Notify(ctx, notify.Input{
				UserID: u.ID, Kind: notify.KindVerification,
				Title: title, Body: req.Note, Link: "/verification",
			})
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Username, req.Status)
			return nil
		},
	}
}
