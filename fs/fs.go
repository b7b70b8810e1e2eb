// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	CommonPasswordsGZ = "assets/common-passwords.txt.gz"
)

//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
