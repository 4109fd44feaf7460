package repository

import "embed"

// Migrations SQL-миграции goose, встроенные в бинарник
//
//go:embed migrations/*.sql
var Migrations embed.FS
