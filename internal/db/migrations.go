package db

import "embed"

// Migrations holds the goose SQL files applied by the goose-migrate command.
//
//go:embed migrations/*.sql
var Migrations embed.FS
