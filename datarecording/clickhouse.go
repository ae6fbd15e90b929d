package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/cockroachdb/errors"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"
)

// clickhouseWriter stores tables in a ClickHouse database through the native
// protocol.
type clickhouseWriter struct {
	conn      clickhouse.Conn
	batchSize int

	lock       sync.Mutex
	tables     map[string]*table
	entryCount int
	closed     bool
}

func clickhouseOptions(cfg RecorderConfig) (*clickhouse.Options, error) {
	if cfg.ConnStr != "" {
		opts, err := clickhouse.ParseDSN(cfg.ConnStr)
		if err != nil {
			return nil, errors.Wrap(err, "parsing ClickHouse DSN")
		}

		if opts.DialTimeout == 0 {
			opts.DialTimeout = 5 * time.Second
		}

		return opts, nil
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 9000
	}

	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	}, nil
}

func newClickHouseWriter(cfg RecorderConfig) (*clickhouseWriter, error) {
	opts, err := clickhouseOptions(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to ClickHouse")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "pinging ClickHouse")
	}

	w := &clickhouseWriter{
		conn:      conn,
		batchSize: cfg.BatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w, nil
}

func clickhouseType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "Int64"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "UInt64"
	case reflect.Float32, reflect.Float64:
		return "Float64"
	default:
		return "String"
	}
}

// clickhouseValues widens the field values to the column types.
func clickhouseValues(entry any) []any {
	v := reflect.ValueOf(entry)
	values := make([]any, 0, v.NumField())

	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)

		switch clickhouseType(f.Kind()) {
		case "Int64":
			values = append(values, f.Int())
		case "UInt64":
			values = append(values, f.Uint())
		case "Float64":
			values = append(values, f.Float())
		default:
			values = append(values, f.Interface())
		}
	}

	return values
}

func (w *clickhouseWriter) CreateTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	s := structs.New(sampleEntry)
	columns := make([]string, 0, len(s.Fields()))

	for _, f := range s.Fields() {
		columns = append(columns,
			f.Name()+" "+clickhouseType(f.Kind()))
	}

	query := "CREATE TABLE IF NOT EXISTS " + tableName +
		" (" + strings.Join(columns, ", ") + ")" +
		" ENGINE = MergeTree() ORDER BY tuple()"

	if err := w.conn.Exec(context.Background(), query); err != nil {
		panic(errors.Wrapf(err, "creating table %s", tableName))
	}

	w.lock.Lock()
	w.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}
	w.lock.Unlock()
}

func (w *clickhouseWriter) InsertData(tableName string, entry any) {
	w.lock.Lock()

	table, exists := w.tables[tableName]
	if !exists {
		w.lock.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	table.entries = append(table.entries, entry)
	w.entryCount++
	full := w.entryCount >= w.batchSize

	w.lock.Unlock()

	if full {
		w.Flush()
	}
}

func (w *clickhouseWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	return tables
}

func (w *clickhouseWriter) Flush() {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.entryCount == 0 || w.closed {
		return
	}

	ctx := context.Background()

	for name, table := range w.tables {
		if len(table.entries) == 0 {
			continue
		}

		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+name)
		if err != nil {
			panic(errors.Wrapf(err, "preparing batch for %s", name))
		}

		for _, entry := range table.entries {
			if err := batch.Append(clickhouseValues(entry)...); err != nil {
				panic(errors.Wrapf(err, "appending to %s", name))
			}
		}

		if err := batch.Send(); err != nil {
			panic(errors.Wrapf(err, "sending batch for %s", name))
		}

		table.entries = nil
	}

	w.entryCount = 0
}

func (w *clickhouseWriter) Close() error {
	w.Flush()

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	return w.conn.Close()
}
