package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	cl "hearthrealm/internal/cli"
	"hearthrealm/internal/game"

	"github.com/spf13/cobra"
)

func (a *app) newHouseCmd() *cobra.Command {
	house := &cobra.Command{
		Use:   "house",
		Short: "Your home, its rooms, garden and servants",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.House(ctx, token)
			if err != nil {
				return err
			}
			renderHouse(out.Data)
			return nil
		}),
	}
	house.AddCommand(&cobra.Command{
		Use:   "buy <tier>",
		Short: "Buy a house in your home settlement",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.BuyHouse(ctx, token, args[0])
			if err != nil {
				return err
			}
			printMessage(out.Message, "")
			renderHouse(out.Data)
			return nil
		}),
	})
	house.AddCommand(&cobra.Command{
		Use:   "room <type>",
		Short: "Build a room",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.AddRoom(ctx, token, args[0])
			if err != nil {
				return err
			}
			printMessage(out.Message, "room built")
			renderHouse(out.Data)
			return nil
		}),
	})
	house.AddCommand(&cobra.Command{
		Use:   "furnish <room_id> <furniture>",
		Short: "Place furniture in a room",
		Args:  cobra.ExactArgs(2),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			roomID, err := int64Arg(args, 0, "Room ID")
			if err != nil {
				return err
			}
			out, err := c.AddFurniture(ctx, token, roomID, args[1])
			if err != nil {
				return err
			}
			printMessage(out.Message, "furniture placed")
			return nil
		}),
	})
	house.AddCommand(&cobra.Command{
		Use:   "repair",
		Short: "Restore the house to full condition",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.RepairHouse(ctx, token)
			if err != nil {
				return err
			}
			printMessage(out.Message, "house repaired")
			return nil
		}),
	})
	house.AddCommand(&cobra.Command{
		Use:   "plant <crop>",
		Short: "Sow a crop in a free garden plot",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.Plant(ctx, token, args[0])
			if err != nil {
				return err
			}
			printMessage(out.Message, "planted")
			return nil
		}),
	})
	house.AddCommand(&cobra.Command{
		Use:   "harvest <plot_id>",
		Short: "Harvest a ready plot",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			plotID, err := int64Arg(args, 0, "Plot ID")
			if err != nil {
				return err
			}
			out, err := c.Harvest(ctx, token, plotID)
			if err != nil {
				return err
			}
			gold.Printf("Harvested %d %s.\n", out.Data.Qty, itemName(out.Data.Item))
			if lu := out.Data.LevelUp; lu.To > lu.From {
				success.Printf("%s level %d -> %d\n", lu.Skill, lu.From, lu.To)
			}
			return nil
		}),
	})
	house.AddCommand(&cobra.Command{
		Use:   "hire <servant>",
		Short: "Hire a servant",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.Hire(ctx, token, args[0])
			if err != nil {
				return err
			}
			printMessage(out.Message, "hired")
			return nil
		}),
	})
	house.AddCommand(&cobra.Command{
		Use:   "dismiss <servant_id>",
		Short: "Let a servant go",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			id, err := int64Arg(args, 0, "Servant ID")
			if err != nil {
				return err
			}
			out, err := c.Dismiss(ctx, token, id)
			if err != nil {
				return err
			}
			printMessage(out.Message, "servant dismissed")
			return nil
		}),
	})
	return house
}

func (a *app) newReligionCmd() *cobra.Command {
	religion := &cobra.Command{
		Use:   "religion",
		Short: "Found, join and serve a religion",
	}
	religion.AddCommand(&cobra.Command{
		Use:   "show [religion_id]",
		Short: "Show your religion, or another by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			var (
				out cl.Reply[game.ReligionView]
				err error
			)
			if len(args) == 1 {
				id, perr := int64Arg(args, 0, "Religion ID")
				if perr != nil {
					return perr
				}
				out, err = c.Religion(ctx, token, id)
			} else {
				out, err = c.MyReligion(ctx, token)
			}
			if err != nil {
				return err
			}
			renderReligion(out.Data)
			return nil
		}),
	})
	religion.AddCommand(&cobra.Command{
		Use:   "create <name> <deity>",
		Short: "Found a religion and become its prophet",
		Args:  cobra.ExactArgs(2),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.CreateReligion(ctx, token, args[0], args[1])
			if err != nil {
				return err
			}
			printMessage(out.Message, "")
			renderReligion(out.Data)
			return nil
		}),
	})
	religion.AddCommand(&cobra.Command{
		Use:   "join <religion_id>",
		Short: "Join a religion",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			id, err := int64Arg(args, 0, "Religion ID")
			if err != nil {
				return err
			}
			out, err := c.JoinReligion(ctx, token, id)
			if err != nil {
				return err
			}
			printMessage(out.Message, "")
			return nil
		}),
	})
	religion.AddCommand(&cobra.Command{
		Use:   "leave",
		Short: "Leave your religion",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.LeaveReligion(ctx, token)
			if err != nil {
				return err
			}
			printMessage(out.Message, "you left")
			return nil
		}),
	})
	religion.AddCommand(&cobra.Command{
		Use:   "donate <gold>",
		Short: "Give gold to the treasury",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			amount, err := int64Arg(args, 0, "Gold")
			if err != nil {
				return err
			}
			out, err := c.Donate(ctx, token, amount)
			if err != nil {
				return err
			}
			printMessage(out.Message, "")
			fmt.Printf("Treasury now %s\n", formatGold(out.Data.Treasury))
			return nil
		}),
	})
	religion.AddCommand(&cobra.Command{
		Use:   "pray",
		Short: "Pray for devotion",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.Pray(ctx, token)
			if err != nil {
				return err
			}
			printMessage(out.Message, "")
			fmt.Printf("Devotion %s (%s), energy %d\n", comma(out.Data.Devotion), out.Data.Rank, out.Data.Energy)
			if lu := out.Data.LevelUp; lu.To > lu.From {
				success.Printf("%s level %d -> %d\n", lu.Skill, lu.From, lu.To)
			}
			return nil
		}),
	})
	var upgrade bool
	hq := &cobra.Command{
		Use:   "hq",
		Short: "Build or upgrade the headquarters where you stand",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.BuildHQ(ctx, token, upgrade)
			if err != nil {
				return err
			}
			printMessage(out.Message, "construction has begun")
			if out.Data.CompletesAt != nil {
				fmt.Printf("Tier %d ready %s\n", out.Data.BuildingTier, out.Data.CompletesAt.Local().Format("Jan 2 15:04"))
			}
			return nil
		}),
	}
	hq.Flags().BoolVar(&upgrade, "upgrade", false, "upgrade an existing headquarters")
	religion.AddCommand(hq)
	return religion
}

func (a *app) newRoleCmd() *cobra.Command {
	role := &cobra.Command{
		Use:   "role",
		Short: "Petition for office and govern",
	}
	role.AddCommand(&cobra.Command{
		Use:   "petition <location> [message...]",
		Short: "Petition to rule a settlement",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			out, err := c.Petition(ctx, token, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			renderPetition(out.Data)
			return nil
		}),
	})
	for _, decision := range []string{"approve", "reject", "withdraw"} {
		role.AddCommand(&cobra.Command{
			Use:   decision + " <petition_id>",
			Short: capitalize(decision) + " a petition",
			Args:  cobra.ExactArgs(1),
			RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
				id, err := int64Arg(args, 0, "Petition ID")
				if err != nil {
					return err
				}
				out, err := c.DecidePetition(ctx, token, id, decision)
				if err != nil {
					return err
				}
				renderPetition(out.Data)
				return nil
			}),
		})
	}
	role.AddCommand(&cobra.Command{
		Use:   "resign",
		Short: "Step down from office",
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, _ []string) error {
			out, err := c.Resign(ctx, token)
			if err != nil {
				return err
			}
			printMessage(out.Message, "resigned")
			return nil
		}),
	})
	role.AddCommand(&cobra.Command{
		Use:   "tax-rate <percent>",
		Short: "Set the income tax of the settlement you rule",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, c *cl.Client, token string, args []string) error {
			rate, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(args[0]), "%"))
			if err != nil {
				return fmt.Errorf("invalid rate")
			}
			out, err := c.SetTaxRate(ctx, token, rate)
			if err != nil {
				return err
			}
			printMessage(out.Message, "")
			return nil
		}),
	})
	return role
}
