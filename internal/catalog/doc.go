// Package catalog manages the persistent host and command catalogs.
//
// Hosts are SSH endpoints registered by the operator; commands are named,
// per-host command definitions with execution options (timeout, nohup,
// service readiness checks). Both are stored in SQLite and served from an
// in-memory cache.
//
// Passwords are runtime-only: they are supplied when a host is registered
// and never written to the database. After a restart a password host must
// be re-registered or switched to key auth.
package catalog
