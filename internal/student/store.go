package student

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store persists registration records in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a store and ensures the schema exists.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS students (
			id                TEXT PRIMARY KEY,
			first_name        TEXT NOT NULL,
			middle_name       TEXT,
			last_name         TEXT NOT NULL,
			date_of_birth     TEXT NOT NULL,
			phone_number      TEXT NOT NULL UNIQUE,
			desired_course    TEXT NOT NULL,
			avatar_data       BYTEA,
			avatar_url        TEXT NOT NULL DEFAULT '',
			registration_date TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS contacts (
			id                TEXT PRIMARY KEY,
			full_name         TEXT NOT NULL,
			company           TEXT NOT NULL,
			phone_number      TEXT NOT NULL UNIQUE,
			alternate_phone   TEXT UNIQUE,
			email             TEXT NOT NULL UNIQUE,
			avatar_data       BYTEA,
			avatar_url        TEXT NOT NULL DEFAULT '',
			registration_date TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_students_registered ON students (registration_date DESC);
		CREATE INDEX IF NOT EXISTS idx_contacts_registered ON contacts (registration_date DESC);
	`)
	return err
}

// conflictMessage maps a unique-violation constraint to the message
// shown to the user.
func conflictMessage(constraint string) string {
	switch constraint {
	case "students_pkey":
		return "Student with this ID already exists"
	case "students_phone_number_key":
		return "Student with this phone number already exists"
	case "contacts_pkey":
		return "Contact with this ID already exists"
	case "contacts_phone_number_key":
		return "Contact with this phone number already exists"
	case "contacts_alternate_phone_key":
		return "Contact with this alternate phone already exists"
	case "contacts_email_key":
		return "Contact with this email already exists"
	default:
		return "Record already exists"
	}
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return &ConflictError{Message: conflictMessage(pgErr.ConstraintName)}
	}
	return err
}

// -------- Students --------

const studentColumns = `id, first_name, middle_name, last_name, date_of_birth,
	phone_number, desired_course, avatar_data, avatar_url, registration_date`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var st Student
	err := row.Scan(&st.ID, &st.FirstName, &st.MiddleName, &st.LastName, &st.DateOfBirth,
		&st.PhoneNumber, &st.DesiredCourse, &st.avatarData, &st.avatarURL, &st.RegistrationDate)
	if err != nil {
		return Student{}, err
	}
	st.Avatar = encodeAvatar(st.avatarData, st.avatarURL)
	return st, nil
}

// CreateStudent inserts a record, mapping uniqueness violations to
// ConflictError.
func (s *Store) CreateStudent(ctx context.Context, st *Student) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, st.ID, st.FirstName, st.MiddleName, st.LastName, st.DateOfBirth,
		st.PhoneNumber, st.DesiredCourse, st.avatarData, st.avatarURL, sqlTimestamp(st.RegistrationDate))
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

// ListStudents returns all students, most recent registration first.
func (s *Store) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students ORDER BY registration_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CountStudents returns the number of stored students.
func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	return n, err
}

// SearchStudents matches a case-insensitive substring over the name
// fields, most recent first.
func (s *Store) SearchStudents(ctx context.Context, term string) ([]Student, error) {
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE first_name ILIKE $1 OR middle_name ILIKE $1 OR last_name ILIKE $1
		ORDER BY registration_date DESC
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetStudent returns a single student or ErrNotFound.
func (s *Store) GetStudent(ctx context.Context, id string) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

// DeleteStudent removes a student by id.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStudentAvatar inlines resolved avatar bytes for a record that was
// stored with only an external URL.
func (s *Store) SetStudentAvatar(ctx context.Context, id string, data []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE students SET avatar_data = $2 WHERE id = $1`, id, data)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// -------- Contacts --------

const contactColumns = `id, full_name, company, phone_number, alternate_phone,
	email, avatar_data, avatar_url, registration_date`

func scanContact(row interface{ Scan(...any) error }) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.FullName, &c.Company, &c.PhoneNumber, &c.AlternatePhone,
		&c.Email, &c.avatarData, &c.avatarURL, &c.RegistrationDate)
	if err != nil {
		return Contact{}, err
	}
	c.Avatar = encodeAvatar(c.avatarData, c.avatarURL)
	return c, nil
}

// CreateContact inserts a record, mapping uniqueness violations to
// ConflictError.
func (s *Store) CreateContact(ctx context.Context, c *Contact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, c.ID, c.FullName, c.Company, c.PhoneNumber, c.AlternatePhone,
		c.Email, c.avatarData, c.avatarURL, sqlTimestamp(c.RegistrationDate))
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

// ListContacts returns all contacts, most recent registration first.
func (s *Store) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+` FROM contacts ORDER BY registration_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountContacts returns the number of stored contacts.
func (s *Store) CountContacts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n)
	return n, err
}

// SearchContacts matches a case-insensitive substring over name,
// company, and email.
func (s *Store) SearchContacts(ctx context.Context, term string) ([]Contact, error) {
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE full_name ILIKE $1 OR company ILIKE $1 OR email ILIKE $1
		ORDER BY registration_date DESC
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetContact returns a single contact or ErrNotFound.
func (s *Store) GetContact(ctx context.Context, id string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// DeleteContact removes a contact by id.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetContactAvatar inlines resolved avatar bytes.
func (s *Store) SetContactAvatar(ctx context.Context, id string, data []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE contacts SET avatar_data = $2 WHERE id = $1`, id, data)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
