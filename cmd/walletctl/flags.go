package main

import "github.com/urfave/cli/v2"

var (
	dirFlag = &cli.StringFlag{
		Name:     "dir",
		Usage:    "wallet directory",
		Category: "WALLET",
		Required: true,
	}
	masterKeyFlag = &cli.StringFlag{
		Name:     "master-key",
		Usage:    "base64-encoded 32-byte master key",
		Category: "WALLET",
		Required: true,
	}
	nameFlag = &cli.StringFlag{
		Name:     "name",
		Usage:    "wallet name (create only)",
		Category: "WALLET",
	}
	poolFlag = &cli.StringFlag{
		Name:     "pool",
		Usage:    "associated pool name (create only)",
		Category: "WALLET",
	}
	xtypeFlag = &cli.StringFlag{
		Name:     "xtype",
		Usage:    "storage backend type (create only)",
		Category: "WALLET",
		Value:    "sqlite",
	}

	classFlag = &cli.StringFlag{
		Name:     "class",
		Usage:    "record class",
		Category: "RECORD",
		Required: true,
	}
	recordNameFlag = &cli.StringFlag{
		Name:     "record",
		Aliases:  []string{"n"},
		Usage:    "record name",
		Category: "RECORD",
		Required: true,
	}
	valueFlag = &cli.StringFlag{
		Name:     "value",
		Usage:    "record value",
		Category: "RECORD",
	}
	tagsFlag = &cli.StringSliceFlag{
		Name:     "tag",
		Usage:    "tag in key=value form; may be repeated",
		Category: "RECORD",
	}
	tagNamesFlag = &cli.StringSliceFlag{
		Name:     "tag-name",
		Usage:    "tag name to delete; may be repeated",
		Category: "RECORD",
	}

	retrieveClassFlag = &cli.BoolFlag{
		Name:     "with-class",
		Usage:    "populate class in the result",
		Category: "FETCH",
	}
	retrieveTagsFlag = &cli.BoolFlag{
		Name:     "with-tags",
		Usage:    "populate tags in the result",
		Category: "FETCH",
	}

	queryTagFlag = &cli.StringFlag{
		Name:     "query-tag",
		Usage:    "tag name to match in search",
		Category: "SEARCH",
		Required: true,
	}
	queryOpFlag = &cli.StringFlag{
		Name:     "op",
		Usage:    "comparison: eq, neq, gt, gte, lt, lte, like, regex",
		Category: "SEARCH",
		Value:    "eq",
	}
	queryValueFlag = &cli.StringFlag{
		Name:     "query-value",
		Usage:    "value to compare against",
		Category: "SEARCH",
		Required: true,
	}
)
