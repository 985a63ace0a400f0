package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seohub/internal/clock"
	"github.com/smallbiznis/seohub/internal/config"
	"github.com/smallbiznis/seohub/internal/mailer"
	"github.com/smallbiznis/seohub/internal/migration"
	"github.com/smallbiznis/seohub/internal/observability"
	"github.com/smallbiznis/seohub/internal/plan"
	"github.com/smallbiznis/seohub/internal/ratelimit"
	"github.com/smallbiznis/seohub/internal/server"
	"github.com/smallbiznis/seohub/internal/telemetry"
	"github.com/smallbiznis/seohub/internal/usage"
	"github.com/smallbiznis/seohub/internal/webhook"
	"github.com/smallbiznis/seohub/pkg/db"
	"github.com/smallbiznis/seohub/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		observability.Module,
		telemetry.Module,
		plan.Module,

		// Functional domains
		usage.Module,
		webhook.Module,
		mailer.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
