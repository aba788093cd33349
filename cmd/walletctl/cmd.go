package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/keichiri/go-wallet/conf"
	"github.com/keichiri/go-wallet/internal/wallet"
	"github.com/keichiri/go-wallet/internal/walletquery"
	"github.com/keichiri/go-wallet/internal/walletregistry"
	"github.com/keichiri/go-wallet/internal/walletstore"
	"github.com/keichiri/go-wallet/internal/wallettags"
)

// registry tracks wallets this process has opened. A one-shot CLI
// invocation only ever holds one, but the registry is what a long-lived
// process (an agent, a daemon) embedding this same client library would
// use to serve many callers from one handle table.
var registry = walletregistry.NewRegistry[*wallet.Wallet]()

func credentialsFromFlag(c *cli.Context) conf.Credentials {
	return conf.Credentials{MasterKey: c.String(masterKeyFlag.Name)}
}

func openFromFlags(c *cli.Context) (walletregistry.Handle, *wallet.Wallet, error) {
	w, err := wallet.OpenWallet(c.String(dirFlag.Name), credentialsFromFlag(c))
	if err != nil {
		return 0, nil, err
	}
	handle, err := registry.Open(c.String(dirFlag.Name), w)
	if err != nil {
		w.Close()
		return 0, nil, err
	}
	return handle, w, nil
}

func closeHandle(handle walletregistry.Handle) error {
	w, err := registry.Close(handle)
	if err != nil {
		return err
	}
	return w.Close()
}

func parseTags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, p := range pairs {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("tag %q must be in key=value form", p)
		}
		tags[parts[0]] = parts[1]
	}
	return tags, nil
}

var createCommand = &cli.Command{
	Name:  "create",
	Usage: "create a new wallet directory",
	Flags: []cli.Flag{dirFlag, masterKeyFlag, nameFlag, poolFlag, xtypeFlag},
	Action: func(c *cli.Context) error {
		descriptor := conf.WalletDescriptor{
			Name:     c.String(nameFlag.Name),
			PoolName: c.String(poolFlag.Name),
			XType:    c.String(xtypeFlag.Name),
		}
		return wallet.CreateWallet(c.String(dirFlag.Name), descriptor, credentialsFromFlag(c))
	},
}

var addCommand = &cli.Command{
	Name:  "add",
	Usage: "add a record",
	Flags: []cli.Flag{dirFlag, masterKeyFlag, classFlag, recordNameFlag, valueFlag, tagsFlag},
	Action: func(c *cli.Context) error {
		handle, w, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeHandle(handle)

		tags, err := parseTags(c.StringSlice(tagsFlag.Name))
		if err != nil {
			return err
		}
		class := c.String(classFlag.Name)
		var value *string
		if c.IsSet(valueFlag.Name) {
			v := c.String(valueFlag.Name)
			value = &v
		}
		return w.Add(context.Background(), &class, c.String(recordNameFlag.Name), value, tags)
	},
}

var getCommand = &cli.Command{
	Name:  "get",
	Usage: "fetch a record",
	Flags: []cli.Flag{dirFlag, masterKeyFlag, classFlag, recordNameFlag, retrieveClassFlag, retrieveTagsFlag},
	Action: func(c *cli.Context) error {
		handle, w, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeHandle(handle)

		class := c.String(classFlag.Name)
		rec, err := w.Get(context.Background(), &class, c.String(recordNameFlag.Name), walletstore.FetchOptions{
			RetrieveType:  c.Bool(retrieveClassFlag.Name),
			RetrieveValue: true,
			RetrieveTags:  c.Bool(retrieveTagsFlag.Name),
		})
		if err != nil {
			return err
		}

		fmt.Printf("name: %s\n", rec.Name)
		if rec.Class != nil {
			fmt.Printf("class: %s\n", *rec.Class)
		}
		if rec.Value != nil {
			fmt.Printf("value: %s\n", *rec.Value)
		}
		for k, v := range rec.Tags {
			fmt.Printf("tag: %s=%s\n", k, v)
		}
		return nil
	},
}

var updateCommand = &cli.Command{
	Name:  "update",
	Usage: "replace a record's value",
	Flags: []cli.Flag{dirFlag, masterKeyFlag, classFlag, recordNameFlag, valueFlag},
	Action: func(c *cli.Context) error {
		handle, w, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeHandle(handle)

		class := c.String(classFlag.Name)
		return w.Update(context.Background(), &class, c.String(recordNameFlag.Name), c.String(valueFlag.Name))
	},
}

var tagCommand = &cli.Command{
	Name:  "tag",
	Usage: "add, replace, or delete a record's tags",
	Subcommands: []*cli.Command{
		{
			Name:  "add",
			Flags: []cli.Flag{dirFlag, masterKeyFlag, classFlag, recordNameFlag, tagsFlag},
			Action: func(c *cli.Context) error {
				handle, w, err := openFromFlags(c)
				if err != nil {
					return err
				}
				defer closeHandle(handle)
				tags, err := parseTags(c.StringSlice(tagsFlag.Name))
				if err != nil {
					return err
				}
				class := c.String(classFlag.Name)
				return w.AddTags(context.Background(), &class, c.String(recordNameFlag.Name), tags)
			},
		},
		{
			Name:  "update",
			Flags: []cli.Flag{dirFlag, masterKeyFlag, classFlag, recordNameFlag, tagsFlag},
			Action: func(c *cli.Context) error {
				handle, w, err := openFromFlags(c)
				if err != nil {
					return err
				}
				defer closeHandle(handle)
				tags, err := parseTags(c.StringSlice(tagsFlag.Name))
				if err != nil {
					return err
				}
				class := c.String(classFlag.Name)
				return w.UpdateTags(context.Background(), &class, c.String(recordNameFlag.Name), tags)
			},
		},
		{
			Name:  "delete",
			Flags: []cli.Flag{dirFlag, masterKeyFlag, classFlag, recordNameFlag, tagNamesFlag},
			Action: func(c *cli.Context) error {
				handle, w, err := openFromFlags(c)
				if err != nil {
					return err
				}
				defer closeHandle(handle)
				class := c.String(classFlag.Name)
				return w.DeleteTags(context.Background(), &class, c.String(recordNameFlag.Name), c.StringSlice(tagNamesFlag.Name))
			},
		},
	},
}

var deleteCommand = &cli.Command{
	Name:  "delete",
	Usage: "delete a record",
	Flags: []cli.Flag{dirFlag, masterKeyFlag, classFlag, recordNameFlag},
	Action: func(c *cli.Context) error {
		handle, w, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeHandle(handle)
		class := c.String(classFlag.Name)
		return w.Delete(context.Background(), &class, c.String(recordNameFlag.Name))
	},
}

var clearCommand = &cli.Command{
	Name:  "clear",
	Usage: "remove every record in the wallet",
	Flags: []cli.Flag{dirFlag, masterKeyFlag},
	Action: func(c *cli.Context) error {
		handle, w, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeHandle(handle)
		return w.Clear(context.Background())
	},
}

var queryKinds = map[string]walletquery.Kind{
	"eq": walletquery.Eq, "neq": walletquery.Neq,
	"gt": walletquery.Gt, "gte": walletquery.Gte,
	"lt": walletquery.Lt, "lte": walletquery.Lte,
	"like": walletquery.Like, "regex": walletquery.Regex,
}

var searchCommand = &cli.Command{
	Name:  "search",
	Usage: "search records in a class by a single tag predicate",
	Flags: []cli.Flag{dirFlag, masterKeyFlag, classFlag, queryTagFlag, queryOpFlag, queryValueFlag, retrieveTagsFlag},
	Action: func(c *cli.Context) error {
		handle, w, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeHandle(handle)

		kind, ok := queryKinds[strings.ToLower(c.String(queryOpFlag.Name))]
		if !ok {
			return fmt.Errorf("unknown op %q", c.String(queryOpFlag.Name))
		}

		tagName := c.String(queryTagFlag.Name)
		var name wallettags.TagName
		if strings.HasPrefix(tagName, "~") {
			name = wallettags.PlainTagName(tagName)
		} else {
			name = wallettags.EncryptedTagName(tagName)
		}
		query := walletquery.NewLeaf(kind, name, walletquery.UnencryptedValue(c.String(queryValueFlag.Name)))

		it, total, err := w.Search(context.Background(), c.String(classFlag.Name), query, walletstore.SearchOptions{
			FetchOptions:       walletstore.FetchOptions{RetrieveTags: c.Bool(retrieveTagsFlag.Name)},
			RetrieveRecords:    true,
			RetrieveTotalCount: true,
		})
		if err != nil {
			return err
		}
		defer it.Close()

		fmt.Printf("matched: %d\n", total)
		for it.Next() {
			rec := it.Record()
			fmt.Printf("- %s\n", rec.Name)
			for k, v := range rec.Tags {
				fmt.Printf("    %s=%s\n", k, v)
			}
		}
		return it.Err()
	},
}
