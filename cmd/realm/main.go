package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "hearthrealm/internal/cli"
	"hearthrealm/internal/config"
	"hearthrealm/internal/syncq"

	"github.com/spf13/cobra"
)

type app struct {
	apiBase string
	home    string
}

func main() {
	cfg := config.LoadCLIFromEnv()
	a := &app{apiBase: cfg.APIBaseURL, home: cfg.Home}

	root := &cobra.Command{
		Use:          "realm",
		Short:        "Hearthrealm CLI game client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.apiBase, "api", a.apiBase, "API base URL")

	root.AddCommand(
		a.newSignupCmd(),
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newMeCmd(),
		a.newWorldCmd(),
		a.newTravelCmd(),
		a.newInventoryCmd(),
		a.newTrainCmd(),
		a.newQueueCmd(),
		a.newCombatCmd(),
		a.newMarketCmd(),
		a.newDiceCmd(),
		a.newHouseCmd(),
		a.newReligionCmd(),
		a.newRoleCmd(),
		a.newEventsCmd(),
		a.newSyncCmd(),
		newMaintCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) client() *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(a.apiBase), "/"))
}

func (a *app) dir() (string, error) {
	return cl.Dir(a.home)
}

func (a *app) session() (cl.Session, error) {
	dir, err := a.dir()
	if err != nil {
		return cl.Session{}, err
	}
	sess, err := cl.LoadSession(dir)
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func (a *app) outbox() (*syncq.Outbox, error) {
	dir, err := a.dir()
	if err != nil {
		return nil, err
	}
	return syncq.Open(dir), nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

// authed runs fn with a loaded session, a client and a request context.
func (a *app) authed(fn func(ctx context.Context, c *cl.Client, token string, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		sess, err := a.session()
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()
		return fn(ctx, a.client(), sess.AccessToken, args)
	}
}

func (a *app) newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a Hearthrealm account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			username, err := promptRequired("Username")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := a.client().Signup(ctx, email, password, username)
			if err != nil {
				return err
			}
			if err := a.saveSession(out.Data.AccessToken, out.Data.User.Username, out.Data.User.ID, out.Data.ExpiresIn); err != nil {
				return err
			}
			printMessage(out.Message, "signup complete")
			return nil
		},
	}
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to Hearthrealm",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := a.client().Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := a.saveSession(out.Data.AccessToken, out.Data.User.Username, out.Data.User.ID, out.Data.ExpiresIn); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Welcome back, %s.", out.Data.User.Username))
			return nil
		},
	}
}

func (a *app) saveSession(token, username string, playerID int64, expiresIn int) error {
	dir, err := a.dir()
	if err != nil {
		return err
	}
	s := cl.Session{AccessToken: token, Username: username, PlayerID: playerID}
	if expiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second).UTC()
	}
	return cl.SaveSession(dir, s)
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.dir()
			if err != nil {
				return err
			}
			if err := cl.ClearSession(dir); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func (a *app) newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your character",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.Me(ctx, token)
			if err != nil {
				return err
			}
			renderProfile(out.Data)
			return nil
		}),
	}
}

func (a *app) newWorldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "world",
		Short: "Show the calendar and every settlement",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.World(ctx, token)
			if err != nil {
				return err
			}
			renderWorld(out.Data)
			return nil
		}),
	}
}

func (a *app) newTravelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "travel <destination>",
		Short: "Walk to another location",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.Travel(ctx, token, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			printMessage(out.Message, "")
			fmt.Printf("Distance %.1f, spent %d energy, %d left.\n", out.Data.Distance, out.Data.EnergyCost, out.Data.Energy)
			return nil
		}),
	}
}

func (a *app) newInventoryCmd() *cobra.Command {
	inv := &cobra.Command{
		Use:   "inventory",
		Short: "Equip, unequip and eat items",
	}
	inv.AddCommand(&cobra.Command{
		Use:   "equip <item>",
		Short: "Wield a weapon from your pack",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.Equip(ctx, token, args[0])
			if err != nil {
				return err
			}
			printMessage(out.Message, "equipped")
			return nil
		}),
	})
	inv.AddCommand(&cobra.Command{
		Use:   "unequip",
		Short: "Put your weapon away",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.Unequip(ctx, token)
			if err != nil {
				return err
			}
			printMessage(out.Message, "unequipped")
			return nil
		}),
	})
	inv.AddCommand(&cobra.Command{
		Use:   "eat <item>",
		Short: "Eat food to restore hp",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.Eat(ctx, token, args[0])
			if err != nil {
				return err
			}
			printMessage(out.Message, "")
			fmt.Printf("HP %s\n", meter(out.Data.HP, out.Data.MaxHP))
			return nil
		}),
	})
	return inv
}

func int64Arg(args []string, idx int, label string) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, 1)
}
