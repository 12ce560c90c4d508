package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/finovo/leaseflow/internal/clock"
	"github.com/finovo/leaseflow/internal/config"
	"github.com/finovo/leaseflow/internal/migration"
	"github.com/finovo/leaseflow/internal/server"
	"github.com/finovo/leaseflow/pkg/db"
	"github.com/finovo/leaseflow/pkg/log"
	"github.com/finovo/leaseflow/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// HTTP surface and domain modules
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
