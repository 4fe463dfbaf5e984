// Package main: repository layer construction.
package main

import (
	"database/sql"

	"github.com/akinalp/gatherly/repository"
)

// Repositories holds every repository instance.
type Repositories struct {
	Message    repository.MessageRepository
	Pin        repository.PinRepository
	ReadState  repository.ReadStateRepository
	Membership repository.MembershipRepository
}

// initRepositories builds the SQLite repositories on a single connection pool.
func initRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Message:    repository.NewSQLiteMessageRepo(db),
		Pin:        repository.NewSQLitePinRepo(db),
		ReadState:  repository.NewSQLiteReadStateRepo(db),
		Membership: repository.NewSQLiteMembershipRepo(db),
	}
}
