package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmarsden/edgeflow-core/internal/remote"
)

// HostRepository defines the interface for host persistence.
type HostRepository interface {
	GetByID(ctx context.Context, id string) (*Host, error)
	List(ctx context.Context) ([]Host, error)
	Create(ctx context.Context, host *Host) error
	Update(ctx context.Context, host *Host) error
	Delete(ctx context.Context, id string) error
	TouchUsed(ctx context.Context, id string) error
}

// CommandRepository defines the interface for command persistence.
type CommandRepository interface {
	GetByID(ctx context.Context, id string) (*Command, error)
	GetByName(ctx context.Context, hostID, name string) (*Command, error)
	List(ctx context.Context) ([]Command, error)
	ListByHost(ctx context.Context, hostID string) ([]Command, error)
	Create(ctx context.Context, cmd *Command) error
	Update(ctx context.Context, cmd *Command) error
	Delete(ctx context.Context, id string) error
	TouchExec(ctx context.Context, id string) error
}

// hostColumns is the SELECT column list for host queries.
// Passwords are not stored, so they never appear here.
const hostColumns = `id, addr, port, username, auth_type, key_id, enabled, created_at, last_used_at`

// commandColumns is the SELECT column list for command queries.
const commandColumns = `id, host_id, name, command, description, var_name, timeout_sec,
			nohup, enabled, service_mode, ready_pattern, fail_pattern,
			ready_timeout_sec, ready_check_interval_ms, created_at, last_exec_at`

// SQLiteHostRepository implements HostRepository using SQLite.
type SQLiteHostRepository struct {
	db *sql.DB
}

// NewSQLiteHostRepository creates a new SQLite-backed host repository.
func NewSQLiteHostRepository(db *sql.DB) *SQLiteHostRepository {
	return &SQLiteHostRepository{db: db}
}

// GetByID retrieves a host by its unique identifier.
func (r *SQLiteHostRepository) GetByID(ctx context.Context, id string) (*Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE id = ?`

	host, err := scanHostRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHostNotFound
		}
		return nil, fmt.Errorf("querying host by id: %w", err)
	}
	return host, nil
}

// List retrieves all hosts ordered by id.
func (r *SQLiteHostRepository) List(ctx context.Context) ([]Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying hosts: %w", err)
	}
	defer rows.Close()

	var hosts []Host
	for rows.Next() {
		h, scanErr := scanHostRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning host: %w", scanErr)
		}
		hosts = append(hosts, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hosts: %w", err)
	}
	return hosts, nil
}

// Create inserts a new host. The password field is deliberately dropped.
func (r *SQLiteHostRepository) Create(ctx context.Context, host *Host) error {
	if host.CreatedAt.IsZero() {
		host.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO hosts (id, addr, port, username, auth_type, key_id, enabled, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		host.ID,
		host.Addr,
		host.Port,
		host.Username,
		string(host.AuthType),
		nullableString(host.KeyID),
		boolToInt(host.Enabled),
		host.CreatedAt.Format(time.RFC3339),
		nullableTime(host.LastUsedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrHostExists
		}
		return fmt.Errorf("inserting host: %w", err)
	}
	return nil
}

// Update modifies an existing host.
func (r *SQLiteHostRepository) Update(ctx context.Context, host *Host) error {
	query := `
		UPDATE hosts SET addr = ?, port = ?, username = ?, auth_type = ?,
			key_id = ?, enabled = ?, last_used_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		host.Addr,
		host.Port,
		host.Username,
		string(host.AuthType),
		nullableString(host.KeyID),
		boolToInt(host.Enabled),
		nullableTime(host.LastUsedAt),
		host.ID,
	)
	if err != nil {
		return fmt.Errorf("updating host: %w", err)
	}
	return requireRow(result, ErrHostNotFound)
}

// Delete removes a host. Commands bound to it cascade.
func (r *SQLiteHostRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM hosts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting host: %w", err)
	}
	return requireRow(result, ErrHostNotFound)
}

// TouchUsed records that the host was just used.
func (r *SQLiteHostRepository) TouchUsed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE hosts SET last_used_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching host: %w", err)
	}
	return requireRow(result, ErrHostNotFound)
}

// SQLiteCommandRepository implements CommandRepository using SQLite.
type SQLiteCommandRepository struct {
	db *sql.DB
}

// NewSQLiteCommandRepository creates a new SQLite-backed command repository.
func NewSQLiteCommandRepository(db *sql.DB) *SQLiteCommandRepository {
	return &SQLiteCommandRepository{db: db}
}

// GetByID retrieves a command by its unique identifier.
func (r *SQLiteCommandRepository) GetByID(ctx context.Context, id string) (*Command, error) {
	query := `SELECT ` + commandColumns + ` FROM commands WHERE id = ?`

	cmd, err := scanCommandRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("querying command by id: %w", err)
	}
	return cmd, nil
}

// GetByName retrieves a command by host and name.
func (r *SQLiteCommandRepository) GetByName(ctx context.Context, hostID, name string) (*Command, error) {
	query := `SELECT ` + commandColumns + ` FROM commands WHERE host_id = ? AND name = ?`

	cmd, err := scanCommandRow(r.db.QueryRowContext(ctx, query, hostID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("querying command by name: %w", err)
	}
	return cmd, nil
}

// List retrieves all commands ordered by host then name.
func (r *SQLiteCommandRepository) List(ctx context.Context) ([]Command, error) {
	query := `SELECT ` + commandColumns + ` FROM commands ORDER BY host_id, name`
	return r.queryCommands(ctx, query)
}

// ListByHost retrieves all commands for a specific host.
func (r *SQLiteCommandRepository) ListByHost(ctx context.Context, hostID string) ([]Command, error) {
	query := `SELECT ` + commandColumns + ` FROM commands WHERE host_id = ? ORDER BY name`
	return r.queryCommands(ctx, query, hostID)
}

// Create inserts a new command.
func (r *SQLiteCommandRepository) Create(ctx context.Context, cmd *Command) error {
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO commands (
			id, host_id, name, command, description, var_name, timeout_sec,
			nohup, enabled, service_mode, ready_pattern, fail_pattern,
			ready_timeout_sec, ready_check_interval_ms, created_at, last_exec_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		cmd.ID,
		cmd.HostID,
		cmd.Name,
		cmd.Command,
		nullableString(cmd.Description),
		nullableString(cmd.VarName),
		cmd.TimeoutSec,
		boolToInt(cmd.Nohup),
		boolToInt(cmd.Enabled),
		boolToInt(cmd.ServiceMode),
		nullableString(cmd.ReadyPattern),
		nullableString(cmd.FailPattern),
		cmd.ReadyTimeoutSec,
		cmd.ReadyCheckIntervalMS,
		cmd.CreatedAt.Format(time.RFC3339),
		nullableTime(cmd.LastExecAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrCommandExists
		}
		return fmt.Errorf("inserting command: %w", err)
	}
	return nil
}

// Update modifies an existing command.
func (r *SQLiteCommandRepository) Update(ctx context.Context, cmd *Command) error {
	query := `
		UPDATE commands SET
			host_id = ?, name = ?, command = ?, description = ?, var_name = ?,
			timeout_sec = ?, nohup = ?, enabled = ?, service_mode = ?,
			ready_pattern = ?, fail_pattern = ?, ready_timeout_sec = ?,
			ready_check_interval_ms = ?, last_exec_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		cmd.HostID,
		cmd.Name,
		cmd.Command,
		nullableString(cmd.Description),
		nullableString(cmd.VarName),
		cmd.TimeoutSec,
		boolToInt(cmd.Nohup),
		boolToInt(cmd.Enabled),
		boolToInt(cmd.ServiceMode),
		nullableString(cmd.ReadyPattern),
		nullableString(cmd.FailPattern),
		cmd.ReadyTimeoutSec,
		cmd.ReadyCheckIntervalMS,
		nullableTime(cmd.LastExecAt),
		cmd.ID,
	)
	if err != nil {
		return fmt.Errorf("updating command: %w", err)
	}
	return requireRow(result, ErrCommandNotFound)
}

// Delete removes a command by ID.
func (r *SQLiteCommandRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM commands WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting command: %w", err)
	}
	return requireRow(result, ErrCommandNotFound)
}

// TouchExec records that the command was just executed.
func (r *SQLiteCommandRepository) TouchExec(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE commands SET last_exec_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching command: %w", err)
	}
	return requireRow(result, ErrCommandNotFound)
}

// queryCommands executes a query and returns a slice of commands.
func (r *SQLiteCommandRepository) queryCommands(ctx context.Context, query string, args ...any) ([]Command, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	var cmds []Command
	for rows.Next() {
		c, scanErr := scanCommandRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning command: %w", scanErr)
		}
		cmds = append(cmds, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	return cmds, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHostRow(scanner rowScanner) (*Host, error) {
	var h Host
	var authType string
	var keyID, lastUsedAt sql.NullString
	var enabled int
	var createdAt string

	err := scanner.Scan(
		&h.ID,
		&h.Addr,
		&h.Port,
		&h.Username,
		&authType,
		&keyID,
		&enabled,
		&createdAt,
		&lastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	h.AuthType = remote.AuthType(authType)
	h.Enabled = enabled != 0
	if keyID.Valid {
		h.KeyID = &keyID.String
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		h.CreatedAt = t
	}
	if lastUsedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, lastUsedAt.String); parseErr == nil {
			h.LastUsedAt = &t
		}
	}
	return &h, nil
}

func scanCommandRow(scanner rowScanner) (*Command, error) {
	var c Command
	var description, varName, readyPattern, failPattern, lastExecAt sql.NullString
	var nohup, enabled, serviceMode int
	var createdAt string

	err := scanner.Scan(
		&c.ID,
		&c.HostID,
		&c.Name,
		&c.Command,
		&description,
		&varName,
		&c.TimeoutSec,
		&nohup,
		&enabled,
		&serviceMode,
		&readyPattern,
		&failPattern,
		&c.ReadyTimeoutSec,
		&c.ReadyCheckIntervalMS,
		&createdAt,
		&lastExecAt,
	)
	if err != nil {
		return nil, err
	}

	c.Nohup = nohup != 0
	c.Enabled = enabled != 0
	c.ServiceMode = serviceMode != 0
	if description.Valid {
		c.Description = &description.String
	}
	if varName.Valid {
		c.VarName = &varName.String
	}
	if readyPattern.Valid {
		c.ReadyPattern = &readyPattern.String
	}
	if failPattern.Valid {
		c.FailPattern = &failPattern.String
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		c.CreatedAt = t
	}
	if lastExecAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, lastExecAt.String); parseErr == nil {
			c.LastExecAt = &t
		}
	}
	return &c, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
