// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hitdb

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migmysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrations embed.FS

func (db *DB) migrate() error {
	src, err := iofs.New(migrations, "migrations/"+db.dialect)
	if err != nil {
		return fmt.Errorf("could not load %s migrations: %w", db.dialect, err)
	}

	var drv database.Driver
	switch db.dialect {
	case dialectSQLite:
		drv, err = migsqlite.WithInstance(db.db, &migsqlite.Config{})
	case dialectMySQL:
		drv, err = migmysql.WithInstance(db.db, &migmysql.Config{})
	default:
		return fmt.Errorf("invalid dialect %q", db.dialect)
	}
	if err != nil {
		return fmt.Errorf("could not create %s migration driver: %w", db.dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.dialect, drv)
	if err != nil {
		return fmt.Errorf("could not create migration: %w", err)
	}
	// m is not closed: closing it would close the shared connection.
	m.Log = migrateLogger{db.msg}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not apply migrations: %w", err)
	}

	return nil
}

type migrateLogger struct {
	msg *log.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.msg.Printf("migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }
