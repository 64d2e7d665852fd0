package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	cl "hearthrealm/internal/cli"
	"hearthrealm/internal/game"
	"hearthrealm/internal/syncq"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func (a *app) newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train <action> [repetitions]",
		Short: "Queue repetitions of a skilling action",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  a.authed(startQueue),
	}
}

func startQueue(ctx context.Context, c *cl.Client, token string, args []string) error {
	reps := 1
	if len(args) > 1 {
		v, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid repetitions")
		}
		reps = v
	}
	out, err := c.StartQueue(ctx, token, strings.TrimSpace(args[0]), reps)
	if err != nil {
		return err
	}
	printMessage(out.Message, "queue started")
	renderQueue(out.Data)
	return nil
}

func (a *app) newQueueCmd() *cobra.Command {
	q := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and control your action queue",
	}
	q.AddCommand(&cobra.Command{
		Use:   "start <action> [repetitions]",
		Short: "Queue repetitions of a skilling action",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  a.authed(startQueue),
	})
	q.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show your latest action queue",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.QueueStatus(ctx, token)
			if err != nil {
				return err
			}
			renderQueue(out.Data)
			return nil
		}),
	})
	q.AddCommand(&cobra.Command{
		Use:   "cancel",
		Short: "Stop the active queue",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.CancelQueue(ctx, token)
			if err != nil {
				return err
			}
			printMessage(out.Message, "queue cancelled")
			return nil
		}),
	})
	var every time.Duration
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Follow queue progress live",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			return watchQueue(cmd.Context(), a.client(), sess.AccessToken, every)
		},
	}
	watch.Flags().DurationVar(&every, "every", time.Second, "poll interval")
	q.AddCommand(watch)
	return q
}

func (a *app) newCombatCmd() *cobra.Command {
	combat := &cobra.Command{
		Use:   "combat",
		Short: "Fight monsters at your location",
	}
	combat.AddCommand(&cobra.Command{
		Use:   "start <monster>",
		Short: "Engage a monster",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.StartCombat(ctx, token, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			renderCombat(out.Data)
			return nil
		}),
	})
	combat.AddCommand(&cobra.Command{
		Use:   "attack",
		Short: "Trade one round of blows",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.Attack(ctx, token)
			if err != nil {
				return err
			}
			renderAttack(out.Data)
			return nil
		}),
	})
	combat.AddCommand(&cobra.Command{
		Use:   "flee",
		Short: "Run from the fight",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.Flee(ctx, token)
			if err != nil {
				return err
			}
			printMessage(out.Message, "you fled")
			return nil
		}),
	})
	return combat
}

func (a *app) newMarketCmd() *cobra.Command {
	market := &cobra.Command{
		Use:   "market",
		Short: "Trade at the local market",
	}
	market.AddCommand(&cobra.Command{
		Use:   "prices",
		Short: "Show prices where you stand",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.Market(ctx, token)
			if err != nil {
				return err
			}
			renderMarket(out.Data)
			return nil
		}),
	})
	for _, side := range []string{"buy", "sell"} {
		market.AddCommand(&cobra.Command{
			Use:   side + " <item> [quantity]",
			Short: capitalize(side) + " items",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  a.authed(a.trade(side)),
		})
	}
	return market
}

// trade queues the order in the outbox if the server cannot be reached.
func (a *app) trade(side string) func(context.Context, *cl.Client, string, []string) error {
	return func(ctx context.Context, c *cl.Client, token string, args []string) error {
		item := strings.TrimSpace(args[0])
		qty := int64(1)
		if len(args) > 1 {
			v, err := int64Arg(args, 1, "Quantity")
			if err != nil {
				return err
			}
			qty = v
		}
		idem := uuid.NewString()
		out, err := c.Trade(ctx, token, side, item, qty, idem)
		if err != nil {
			return a.queueOnNetworkError(err, syncq.Command{
				Method:         http.MethodPost,
				Path:           "/v1/market/" + side,
				Body:           map[string]any{"item": item, "quantity": qty},
				IdempotencyKey: idem,
			})
		}
		renderTrade(out.Message, out.Data)
		return nil
	}
}

func (a *app) newDiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dice <stake>",
		Short: "Roll two dice at the tavern",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			stake, err := int64Arg(args, 0, "Stake")
			if err != nil {
				return err
			}
			out, err := c.Dice(ctx, token, stake, uuid.NewString())
			if err != nil {
				return err
			}
			renderDice(out.Data)
			return nil
		}),
	}
}

func (a *app) queueOnNetworkError(err error, cmd syncq.Command) error {
	if err == nil || cl.IsAPIError(err) {
		return err
	}
	box, boxErr := a.outbox()
	if boxErr != nil {
		return fmt.Errorf("request failed: %w (outbox: %v)", err, boxErr)
	}
	if pushErr := box.Push(cmd); pushErr != nil {
		return fmt.Errorf("request failed: %w (outbox: %v)", err, pushErr)
	}
	printWarn(fmt.Sprintf("Server unreachable; queued %s %s. Run `realm sync` later.", cmd.Method, cmd.Path))
	return nil
}

func (a *app) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay writes queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			box, err := a.outbox()
			if err != nil {
				return err
			}
			client := a.client()
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			send := func(ctx context.Context, q syncq.Command) (string, error) {
				return client.Do(ctx, q.Method, q.Path, sess.AccessToken, q.Body, q.IdempotencyKey)
			}
			keep := func(err error) bool { return !cl.IsAPIError(err) }
			results, err := box.Drain(ctx, send, keep)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				printInfo("Outbox is empty.")
				return nil
			}
			replayed, kept := 0, 0
			for _, r := range results {
				switch {
				case r.Err == nil:
					replayed++
					printMessage(r.Message, r.Command.Method+" "+r.Command.Path)
				case keep(r.Err):
					kept++
					printWarn(fmt.Sprintf("Still offline for %s %s: %v", r.Command.Method, r.Command.Path, r.Err))
				default:
					printError(fmt.Sprintf("Rejected %s %s: %v", r.Command.Method, r.Command.Path, r.Err))
				}
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", replayed, kept))
			return nil
		},
	}
}

func (a *app) newEventsCmd() *cobra.Command {
	var here bool
	events := &cobra.Command{
		Use:   "events",
		Short: "Stream world events as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			client := a.client()
			var location int64
			if here {
				ctx, cancel := requestContext(cmd)
				me, err := client.Me(ctx, sess.AccessToken)
				cancel()
				if err != nil {
					return err
				}
				location = me.Data.Location.ID
			}
			url, err := client.EventsURL(sess.AccessToken, location)
			if err != nil {
				return err
			}
			return tailEvents(cmd.Context(), url)
		},
	}
	events.Flags().BoolVar(&here, "here", false, "only events at your current location")
	return events
}

func tailEvents(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connect event feed: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	printInfo("Listening for world events. Ctrl+C to stop.")
	for {
		var ev game.WorldEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		stamp := ev.CreatedAt
		if stamp.IsZero() {
			stamp = time.Now()
		}
		fmt.Printf("%s %s %s\n", neutral.Sprint(stamp.Local().Format("15:04:05")), accent.Sprint(ev.Kind), compactJSON(ev.Payload))
	}
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return truncate(string(raw), 160)
}
