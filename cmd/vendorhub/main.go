package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/vendorhub/internal/autosave"
	"github.com/smallbiznis/vendorhub/internal/cache"
	"github.com/smallbiznis/vendorhub/internal/catalog"
	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/smallbiznis/vendorhub/internal/migration"
	"github.com/smallbiznis/vendorhub/internal/notify"
	"github.com/smallbiznis/vendorhub/internal/observability"
	"github.com/smallbiznis/vendorhub/internal/pricesheet"
	"github.com/smallbiznis/vendorhub/internal/pricingmode"
	"github.com/smallbiznis/vendorhub/internal/retry"
	"github.com/smallbiznis/vendorhub/internal/savelock"
	"github.com/smallbiznis/vendorhub/internal/scrape"
	"github.com/smallbiznis/vendorhub/internal/server"
	"github.com/smallbiznis/vendorhub/pkg/db"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		savelock.Module,
		retry.Module,
		cache.Module,
		notify.Module,

		// Functional Domains
		catalog.Module,
		pricingmode.Module,
		scrape.Module,
		pricesheet.Module,
		autosave.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		panic(err)
	}
	return node
}
