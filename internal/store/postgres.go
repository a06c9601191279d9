package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"leadify-meeting-orchestrator/internal/leads"
	"leadify-meeting-orchestrator/internal/types"
)

const uniqueViolation = "23505"

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on database/sql with the pgx driver
type PostgresStore struct {
	*pgQueries
	db *sql.DB
}

// NewPostgresStore wraps an open pool
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{pgQueries: &pgQueries{db: db}, db: db}
}

// DB exposes the pool for migrations and integration tests
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// WithinTx implements Store
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&pgQueries{db: tx, inTx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping implements Store
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type pgQueries struct {
	db   dbtx
	inTx bool
}

// leadFilter renders the owner predicate for a lead on tables that carry
// both client_id and legacy_lead_id
func leadFilter(lead types.CanonicalLead, alias string, pos int) (string, any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	switch {
	case lead.Kind == types.SchemaLegacy:
		return fmt.Sprintf("%s = $%d", col("legacy_lead_id"), pos), lead.LegacyID
	case lead.ModernID != "":
		return fmt.Sprintf("%s = $%d::uuid", col("client_id"), pos), lead.ModernID
	default:
		return fmt.Sprintf("%s = (SELECT id FROM leads WHERE lead_number = $%d)", col("client_id"), pos), lead.LeadNumber
	}
}

// modernKey renders the key predicate on the leads table itself
func modernKey(lead types.CanonicalLead) (string, any) {
	if lead.ModernID != "" {
		return "id = $1::uuid", lead.ModernID
	}
	return "lead_number = $1", lead.LeadNumber
}

func (q *pgQueries) GetLead(ctx context.Context, ref types.CanonicalLead) (types.Lead, error) {
	if ref.Kind == types.SchemaLegacy {
		return q.getLegacyLead(ctx, ref)
	}
	return q.getModernLead(ctx, ref)
}

func (q *pgQueries) getLegacyLead(ctx context.Context, ref types.CanonicalLead) (types.Lead, error) {
	const query = `
		SELECT id, name, email, phone, language, COALESCE(currency_id::text, ''),
			meeting_manager_id, meeting_scheduler_id, meeting_lawyer_id, expert_id
		FROM leads_lead WHERE id = $1
	`
	var (
		lead                               types.Lead
		currency                           string
		manager, scheduler, helper, expert sql.NullInt64
	)
	err := q.db.QueryRowContext(ctx, query, ref.LegacyID).Scan(
		&lead.Ref.LegacyID, &lead.Name, &lead.Email, &lead.Phone, &lead.Language, &currency,
		&manager, &scheduler, &helper, &expert,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Lead{}, ErrNotFound
	}
	if err != nil {
		return types.Lead{}, fmt.Errorf("read legacy lead: %w", err)
	}

	lead.Ref.Kind = types.SchemaLegacy
	lead.Ref = leads.Reattach(lead.Ref)
	lead.Number = lead.Ref.DisplayKey()
	lead.Currency = leads.CurrencyCode(leads.LegacySchema, currency)
	lead.Roles = types.Roles{
		Manager:   types.EmployeeRef{ID: manager.Int64},
		Scheduler: types.EmployeeRef{ID: scheduler.Int64},
		Helper:    types.EmployeeRef{ID: helper.Int64},
		Expert:    types.EmployeeRef{ID: expert.Int64},
	}
	return lead, nil
}

func (q *pgQueries) getModernLead(ctx context.Context, ref types.CanonicalLead) (types.Lead, error) {
	where, arg := modernKey(ref)
	query := `
		SELECT id::text, lead_number, name, email, phone, language, currency,
			manager, scheduler, helper, expert
		FROM leads WHERE ` + where

	var (
		lead                               types.Lead
		currency                           string
		manager, scheduler, helper, expert string
	)
	err := q.db.QueryRowContext(ctx, query, arg).Scan(
		&lead.Ref.ModernID, &lead.Ref.LeadNumber, &lead.Name, &lead.Email, &lead.Phone, &lead.Language, &currency,
		&manager, &scheduler, &helper, &expert,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Lead{}, ErrNotFound
	}
	if err != nil {
		return types.Lead{}, fmt.Errorf("read lead: %w", err)
	}

	lead.Ref.Kind = types.SchemaModern
	lead.Ref = leads.Reattach(lead.Ref)
	lead.Number = lead.Ref.LeadNumber
	lead.Currency = leads.CurrencyCode(leads.ModernSchema, currency)
	lead.Roles = types.Roles{
		Manager:   types.EmployeeRef{Name: manager},
		Scheduler: types.EmployeeRef{Name: scheduler},
		Helper:    types.EmployeeRef{Name: helper},
		Expert:    types.EmployeeRef{Name: expert},
	}
	return lead, nil
}

func (q *pgQueries) LockLead(ctx context.Context, ref types.CanonicalLead) error {
	var (
		query string
		arg   any
	)
	if ref.Kind == types.SchemaLegacy {
		query, arg = `SELECT 1 FROM leads_lead WHERE id = $1 FOR UPDATE`, ref.LegacyID
	} else {
		where, a := modernKey(ref)
		query, arg = `SELECT 1 FROM leads WHERE `+where+` FOR UPDATE`, a
	}

	var one int
	err := q.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock lead: %w", err)
	}
	return nil
}

func (q *pgQueries) ListContacts(ctx context.Context, ref types.CanonicalLead) ([]types.Contact, error) {
	where, arg := leadFilter(ref, "", 1)
	rows, err := q.db.QueryContext(ctx, `
		SELECT id::text, name, email, phone, language, is_main
		FROM contacts WHERE `+where+`
		ORDER BY is_main DESC, name ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	key := ref.Key()
	var out []types.Contact
	for rows.Next() {
		c := types.Contact{LeadKey: key}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Language, &c.IsMain); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *pgQueries) AssignLeadRoles(ctx context.Context, ref types.CanonicalLead, roles types.Roles) error {
	var (
		res sql.Result
		err error
	)
	if ref.Kind == types.SchemaLegacy {
		id := func(e types.EmployeeRef) sql.NullInt64 {
			return sql.NullInt64{Int64: e.ID, Valid: e.ID > 0}
		}
		res, err = q.db.ExecContext(ctx, `
			UPDATE leads_lead SET
				meeting_manager_id   = COALESCE($2, meeting_manager_id),
				meeting_scheduler_id = COALESCE($3, meeting_scheduler_id),
				meeting_lawyer_id    = COALESCE($4, meeting_lawyer_id),
				expert_id            = COALESCE($5, expert_id)
			WHERE id = $1
		`, ref.LegacyID, id(roles.Manager), id(roles.Scheduler), id(roles.Helper), id(roles.Expert))
	} else {
		where, arg := modernKey(ref)
		res, err = q.db.ExecContext(ctx, `
			UPDATE leads SET
				manager   = COALESCE(NULLIF($2, ''), manager),
				scheduler = COALESCE(NULLIF($3, ''), scheduler),
				helper    = COALESCE(NULLIF($4, ''), helper),
				expert    = COALESCE(NULLIF($5, ''), expert)
			WHERE `+where,
			arg, roles.Manager.Name, roles.Scheduler.Name, roles.Helper.Name, roles.Expert.Name)
	}
	if err != nil {
		return fmt.Errorf("assign lead roles: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const meetingSelect = `
	SELECT m.id::text, m.client_id::text, m.legacy_lead_id, l.lead_number,
		to_char(m.meeting_date, 'YYYY-MM-DD'), m.meeting_time, m.meeting_location,
		m.meeting_manager, m.meeting_scheduler, m.helper, m.expert,
		m.meeting_amount::float8, m.meeting_currency, m.meeting_brief,
		m.teams_id, m.teams_join_url, m.status,
		m.last_edited_timestamp, m.last_edited_by, m.created_at
	FROM meetings m
	LEFT JOIN leads l ON l.id = m.client_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (types.Meeting, error) {
	var (
		m                                  types.Meeting
		clientID, leadNumber               sql.NullString
		legacyID                           sql.NullInt64
		manager, scheduler, helper, expert string
		currency, status                   string
		teamsID, joinURL                   sql.NullString
	)
	err := row.Scan(
		&m.ID, &clientID, &legacyID, &leadNumber,
		&m.Date, &m.Time, &m.Location,
		&manager, &scheduler, &helper, &expert,
		&m.Amount, &currency, &m.Brief,
		&teamsID, &joinURL, &status,
		&m.LastEditedAt, &m.LastEditedBy, &m.CreatedAt,
	)
	if err != nil {
		return types.Meeting{}, err
	}

	if legacyID.Valid {
		m.Lead = types.CanonicalLead{Kind: types.SchemaLegacy, LegacyID: legacyID.Int64}
	} else {
		m.Lead = types.CanonicalLead{Kind: types.SchemaModern, ModernID: clientID.String, LeadNumber: leadNumber.String}
	}
	m.Lead = leads.Reattach(m.Lead)
	schema := m.Lead.Schema

	m.Roles = types.Roles{
		Manager:   leads.DecodeEmployee(schema, manager),
		Scheduler: leads.DecodeEmployee(schema, scheduler),
		Helper:    leads.DecodeEmployee(schema, helper),
		Expert:    leads.DecodeEmployee(schema, expert),
	}
	m.Currency = leads.CurrencyCode(schema, currency)
	m.Status = types.MeetingStatus(status)
	if teamsID.Valid {
		m.ExternalEventID = &teamsID.String
	}
	if joinURL.Valid {
		m.JoinURL = &joinURL.String
	}
	return m, nil
}

func (q *pgQueries) GetMeeting(ctx context.Context, id string) (types.Meeting, error) {
	m, err := scanMeeting(q.db.QueryRowContext(ctx, meetingSelect+` WHERE m.id = $1::uuid`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Meeting{}, ErrNotFound
	}
	if err != nil {
		return types.Meeting{}, fmt.Errorf("read meeting: %w", err)
	}
	return m, nil
}

func (q *pgQueries) ListActiveMeetings(ctx context.Context, ref types.CanonicalLead, today string) ([]types.Meeting, error) {
	where, arg := leadFilter(ref, "m", 1)
	rows, err := q.db.QueryContext(ctx, meetingSelect+`
		WHERE `+where+` AND m.status = 'scheduled' AND m.meeting_date >= $2::date
		ORDER BY m.meeting_date, m.meeting_time, m.created_at
	`, arg, today)
	if err != nil {
		return nil, fmt.Errorf("list active meetings: %w", err)
	}
	defer rows.Close()

	var out []types.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *pgQueries) OldestActiveMeeting(ctx context.Context, ref types.CanonicalLead, today string) (*types.Meeting, error) {
	where, arg := leadFilter(ref, "m", 1)
	query := meetingSelect + `
		WHERE ` + where + ` AND m.status = 'scheduled' AND m.meeting_date >= $2::date
		ORDER BY m.meeting_date, m.meeting_time, m.created_at
		LIMIT 1`
	if q.inTx {
		query += ` FOR UPDATE OF m`
	}

	m, err := scanMeeting(q.db.QueryRowContext(ctx, query, arg, today))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read active meeting: %w", err)
	}
	return &m, nil
}

func encodeRole(schema types.Schema, ref types.EmployeeRef) string {
	if v, ok := leads.EncodeEmployee(schema, ref); ok {
		return v
	}
	return ref.Name
}

func (q *pgQueries) InsertMeeting(ctx context.Context, m types.Meeting) error {
	schema := leads.SchemaFor(m.Lead.Kind)

	var clientID, legacyID any
	ownerExpr := "$2::uuid, $3::bigint"
	switch {
	case m.Lead.Kind == types.SchemaLegacy:
		legacyID = m.Lead.LegacyID
	case m.Lead.ModernID != "":
		clientID = m.Lead.ModernID
	default:
		clientID = m.Lead.LeadNumber
		ownerExpr = "(SELECT id FROM leads WHERE lead_number = $2::text), $3::bigint"
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO meetings (
			id, client_id, legacy_lead_id, meeting_date, meeting_time, meeting_location,
			meeting_manager, meeting_scheduler, helper, expert,
			meeting_amount, meeting_currency, meeting_brief,
			teams_id, teams_join_url, status, last_edited_timestamp, last_edited_by, created_at
		) VALUES (
			$1::uuid, `+ownerExpr+`, $4::date, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17, $18, $19
		)`,
		m.ID, clientID, legacyID, m.Date, m.Time, m.Location,
		encodeRole(schema, m.Roles.Manager), encodeRole(schema, m.Roles.Scheduler),
		encodeRole(schema, m.Roles.Helper), encodeRole(schema, m.Roles.Expert),
		m.Amount, leads.StoredCurrency(schema, m.Currency), m.Brief,
		m.ExternalEventID, m.JoinURL, string(m.Status), m.LastEditedAt, m.LastEditedBy, m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// meetingExists distinguishes "not scheduled" from "missing" after a
// conditional update touched no rows
func (q *pgQueries) meetingExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM meetings WHERE id = $1::uuid)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check meeting: %w", err)
	}
	return exists, nil
}

func (q *pgQueries) conditional(ctx context.Context, id string, res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	exists, err := q.meetingExists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (q *pgQueries) CancelMeeting(ctx context.Context, id, actor string, at time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE meetings
		SET status = 'canceled', last_edited_timestamp = $2, last_edited_by = $3
		WHERE id = $1::uuid AND status = 'scheduled'
	`, id, at, actor)
	if err != nil {
		return false, fmt.Errorf("cancel meeting: %w", err)
	}
	return q.conditional(ctx, id, res)
}

func (q *pgQueries) UpdateMeeting(ctx context.Context, m types.Meeting) (bool, error) {
	schema := leads.SchemaFor(m.Lead.Kind)
	res, err := q.db.ExecContext(ctx, `
		UPDATE meetings SET
			meeting_date = $2::date, meeting_time = $3, meeting_location = $4,
			meeting_manager = $5, meeting_scheduler = $6, helper = $7, expert = $8,
			meeting_amount = $9, meeting_currency = $10, meeting_brief = $11,
			teams_id = $12, teams_join_url = $13,
			last_edited_timestamp = $14, last_edited_by = $15
		WHERE id = $1::uuid AND status = 'scheduled'
	`,
		m.ID, m.Date, m.Time, m.Location,
		encodeRole(schema, m.Roles.Manager), encodeRole(schema, m.Roles.Scheduler),
		encodeRole(schema, m.Roles.Helper), encodeRole(schema, m.Roles.Expert),
		m.Amount, leads.StoredCurrency(schema, m.Currency), m.Brief,
		m.ExternalEventID, m.JoinURL, m.LastEditedAt, m.LastEditedBy,
	)
	if err != nil {
		return false, fmt.Errorf("update meeting: %w", err)
	}
	return q.conditional(ctx, m.ID, res)
}

func (q *pgQueries) AppendNotificationEvent(ctx context.Context, e types.NotificationEvent) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO notification_events
			(id, meeting_id, kind, channel, template_id, recipient, subject, content, outcome, reason, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.MeetingID, string(e.Kind), string(e.Channel), e.TemplateID, e.Recipient,
		e.Subject, e.Content, string(e.Outcome), e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append notification event: %w", err)
	}
	return nil
}

func (q *pgQueries) ListNotificationEvents(ctx context.Context, meetingID string) ([]types.NotificationEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id::text, meeting_id::text, kind, channel, template_id, recipient, subject, content, outcome, reason, created_at
		FROM notification_events WHERE meeting_id = $1::uuid
		ORDER BY created_at
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list notification events: %w", err)
	}
	defer rows.Close()

	var out []types.NotificationEvent
	for rows.Next() {
		var (
			e                       types.NotificationEvent
			kind, channel, outcome string
		)
		if err := rows.Scan(&e.ID, &e.MeetingID, &kind, &channel, &e.TemplateID, &e.Recipient,
			&e.Subject, &e.Content, &outcome, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification event: %w", err)
		}
		e.Kind = types.EventKind(kind)
		e.Channel = types.Channel(channel)
		e.Outcome = types.Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (q *pgQueries) ListSchedulingNotes(ctx context.Context, ref types.CanonicalLead) ([]types.SchedulingNote, error) {
	where, arg := leadFilter(ref, "", 1)
	rows, err := q.db.QueryContext(ctx, `
		SELECT created_at, created_by, note, next_follow_up
		FROM scheduling_history WHERE `+where+` ORDER BY id
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list scheduling history: %w", err)
	}
	defer rows.Close()

	var out []types.SchedulingNote
	for rows.Next() {
		var (
			n    types.SchedulingNote
			next sql.NullTime
		)
		if err := rows.Scan(&n.CreatedAt, &n.CreatedBy, &n.Note, &next); err != nil {
			return nil, fmt.Errorf("scan scheduling history: %w", err)
		}
		n.NextFollowUp = nullableTime(next)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q *pgQueries) ListFollowUps(ctx context.Context, ref types.CanonicalLead) ([]types.FollowUp, error) {
	where, arg := leadFilter(ref, "", 1)
	rows, err := q.db.QueryContext(ctx, `
		SELECT date, user_name, notes, next_follow_up
		FROM follow_ups WHERE `+where+` ORDER BY id
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	defer rows.Close()

	var out []types.FollowUp
	for rows.Next() {
		var (
			f    types.FollowUp
			next sql.NullTime
		)
		if err := rows.Scan(&f.Date, &f.UserName, &f.Notes, &next); err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		f.NextFollowUp = nullableTime(next)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (q *pgQueries) ListLeadNotes(ctx context.Context, ref types.CanonicalLead) ([]types.LeadNote, error) {
	where, arg := leadFilter(ref, "", 1)
	rows, err := q.db.QueryContext(ctx, `
		SELECT created_at, created_by, content
		FROM lead_notes WHERE `+where+` ORDER BY id
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list lead notes: %w", err)
	}
	defer rows.Close()

	var out []types.LeadNote
	for rows.Next() {
		var n types.LeadNote
		if err := rows.Scan(&n.CreatedAt, &n.CreatedBy, &n.Content); err != nil {
			return nil, fmt.Errorf("scan lead note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
