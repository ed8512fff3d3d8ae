package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/ZilDuck/nft-marketplace/internal/config"
	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/store"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	config.Init("cli")

	app := &cli.App{
		Name:  "marketplace",
		Usage: "inspect the marketplace ledger store",
		Commands: []*cli.Command{
			{
				Name:   "listings",
				Usage:  "print active listings, optionally for one collection",
				Action: printListings,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "collection", Value: "", Usage: "filter by collection address"},
				},
			},
			{
				Name:      "listing",
				Usage:     "print the listing of a token",
				ArgsUsage: "<collection> <tokenId>",
				Action:    printListing,
			},
			{
				Name:      "proceeds",
				Usage:     "print the proceeds of a principal",
				ArgsUsage: "<principal>",
				Action:    printProceeds,
			},
			{
				Name:   "operator",
				Usage:  "print the operator and its fee balance",
				Action: printOperator,
			},
			{
				Name:   "networks",
				Usage:  "print the known networks",
				Action: printNetworks,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("CLI failed")
	}
}

func loadSnapshot(c *cli.Context) (*store.Snapshot, error) {
	cfg := config.Get().Store

	st, err := store.Open(cfg.Driver, cfg.Path, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := st.Close(); err != nil {
			zap.L().With(zap.Error(err)).Warn("Failed to close store")
		}
	}()

	return st.Load(c.Context)
}

func printListings(c *cli.Context) error {
	snapshot, err := loadSnapshot(c)
	if err != nil {
		return err
	}

	var collection entity.Collection
	if c.String("collection") != "" {
		if collection, err = entity.NewCollection(c.String("collection")); err != nil {
			return err
		}
	}

	keys := make([]entity.TokenKey, 0, len(snapshot.Listings))
	for key := range snapshot.Listings {
		if collection == "" || key.Collection == collection {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Collection != keys[j].Collection {
			return keys[i].Collection < keys[j].Collection
		}
		return keys[i].TokenId < keys[j].TokenId
	})

	for _, key := range keys {
		listing := snapshot.Listings[key]
		fmt.Fprintf(c.App.Writer, "%s\t%d\t%s\t%d\n", key.Collection, key.TokenId, listing.Seller, listing.Price)
	}
	zap.S().Debugf("%d listings", len(keys))

	return nil
}

func printListing(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("expected <collection> <tokenId>", 1)
	}
	collection, err := entity.NewCollection(c.Args().Get(0))
	if err != nil {
		return err
	}
	tokenId, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
	if err != nil {
		return err
	}

	snapshot, err := loadSnapshot(c)
	if err != nil {
		return err
	}

	listing := snapshot.Listings[entity.NewTokenKey(collection, tokenId)]
	if !listing.Active() {
		fmt.Fprintln(c.App.Writer, "not listed")
		return nil
	}
	fmt.Fprintf(c.App.Writer, "seller: %s (%s)\nprice: %d\n", listing.Seller, listing.Seller.Bech32(), listing.Price)

	return nil
}

func printProceeds(c *cli.Context) error {
	principal, err := entity.NewPrincipal(c.Args().First())
	if err != nil {
		return err
	}

	snapshot, err := loadSnapshot(c)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%d\n", snapshot.Proceeds[principal])

	return nil
}

func printOperator(c *cli.Context) error {
	snapshot, err := loadSnapshot(c)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "operator: %s\nbalance: %d\n", snapshot.Operator, snapshot.OperatorBalance)

	return nil
}

func printNetworks(c *cli.Context) error {
	for _, name := range config.Networks() {
		network, _ := config.GetNetwork(name)
		fmt.Fprintf(c.App.Writer, "%s\tchain %d\tconfirmations %d\n", network.Name, network.ChainId, network.WaitConfirmations)
	}

	return nil
}

