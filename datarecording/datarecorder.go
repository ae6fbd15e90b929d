// Package datarecording stores recorded data in sqlite or ClickHouse tables
// derived from Go structs.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the created tables.
	ListTables() []string

	// Flush writes all the buffered entries.
	Flush()

	// Close flushes and releases the connection.
	Close() error
}

// RecorderConfig selects and configures a backend.
type RecorderConfig struct {
	// Type is "sqlite" (default) or "clickhouse".
	Type string

	// Path of the sqlite file. Empty generates a unique name.
	Path string

	// ConnStr is a ClickHouse DSN. It takes precedence over the fields below.
	ConnStr  string
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// BatchSize is the number of buffered entries that triggers a flush.
	BatchSize int
}

const defaultBatchSize = 100000

// NewDataRecorderWithConfig creates the backend described by cfg.
func NewDataRecorderWithConfig(cfg RecorderConfig) (DataRecorder, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	switch cfg.Type {
	case "", "sqlite":
		w := &sqliteWriter{
			dbName:    cfg.Path,
			batchSize: cfg.BatchSize,
			tables:    make(map[string]*table),
		}

		if err := w.Init(); err != nil {
			return nil, err
		}

		atexit.Register(func() { w.Flush() })

		return w, nil
	case "clickhouse":
		return newClickHouseWriter(cfg)
	default:
		return nil, errors.Newf("unknown recorder type %q", cfg.Type)
	}
}

// New creates a sqlite DataRecorder at path. It panics if the database
// cannot be created.
func New(path string) DataRecorder {
	r, err := NewDataRecorderWithConfig(RecorderConfig{Path: path})
	if err != nil {
		panic(err)
	}

	return r
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// SQLiteFilename returns the file a sqlite recorder created for path.
func SQLiteFilename(path string) string {
	if strings.HasSuffix(path, ".sqlite3") {
		return path
	}

	return path + ".sqlite3"
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB

	lock       sync.Mutex
	dbName     string
	filename   string
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

// Init establishes a connection to the database.
func (t *sqliteWriter) Init() error {
	if t.dbName == "" {
		t.dbName = "framescope_" + xid.New().String()
	}

	t.filename = SQLiteFilename(t.dbName)

	if _, err := os.Stat(t.filename); err == nil {
		return errors.Newf("file %s already exists", t.filename)
	}

	db, err := sql.Open("sqlite3", t.filename)
	if err != nil {
		return errors.Wrapf(err, "opening %s", t.filename)
	}

	// sql.Open is lazy. Writing the header creates the file right away.
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		db.Close()
		return errors.Wrapf(err, "creating %s", t.filename)
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", t.filename)

	t.DB = db

	return nil
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	types := reflect.TypeOf(entry)
	if types == nil || types.Kind() != reflect.Struct {
		return errors.Newf("entry must be a struct, got %T", entry)
	}

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		if !field.IsExported() || !isAllowedKind(field.Type.Kind()) {
			return errors.Newf("field %s of %s cannot be stored",
				field.Name, types)
		}
	}

	return nil
}

// fieldValues returns the field values of a struct entry, in field order.
func fieldValues(entry any) []any {
	v := reflect.ValueOf(entry)
	values := make([]any, 0, v.NumField())

	for i := 0; i < v.NumField(); i++ {
		values = append(values, v.Field(i).Interface())
	}

	return values
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	n := structs.Names(sampleEntry)
	fields := strings.Join(n, ", \n\t")

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	t.mustExecute(createTableSQL)

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
}

func (t *sqliteWriter) InsertData(tableName string, entry any) {
	t.lock.Lock()

	table, exists := t.tables[tableName]
	if !exists {
		t.lock.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		t.lock.Unlock()
		panic(fmt.Sprintf("table %s stores %s, got %T",
			tableName, table.structType, entry))
	}

	table.entries = append(table.entries, entry)
	t.entryCount++
	full := t.entryCount >= t.batchSize

	t.lock.Unlock()

	if full {
		t.Flush()
	}
}

func (t *sqliteWriter) ListTables() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	tables := make([]string, 0, len(t.tables))
	for table := range t.tables {
		tables = append(tables, table)
	}

	return tables
}

func (t *sqliteWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.entryCount == 0 || t.closed {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for tableName, table := range t.tables {
		if len(table.entries) == 0 {
			continue
		}

		stmt := t.prepareStatement(tableName, table.entries[0])

		for _, entry := range table.entries {
			if _, err := stmt.Exec(fieldValues(entry)...); err != nil {
				panic(err)
			}
		}

		table.entries = nil
		stmt.Close()
	}

	t.entryCount = 0
}

func (t *sqliteWriter) Close() error {
	t.Flush()

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	return t.DB.Close()
}

func (t *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}

func (t *sqliteWriter) prepareStatement(table string, entry any) *sql.Stmt {
	n := structs.Names(entry)
	for i := 0; i < len(n); i++ {
		n[i] = "?"
	}

	entryToFill := "(" + strings.Join(n, ", ") + ")"
	sqlStr := "INSERT INTO " + table + " VALUES " + entryToFill

	stmt, err := t.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}
