package errors

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrorDump flattens an error chain into log fields. Driver-specific fields
// are filled for the first database error found in the chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	MySQLNumber  uint16 `json:"mysql_number,omitempty"`
	MySQLState   string `json:"mysql_state,omitempty"`
	MySQLMessage string `json:"mysql_message,omitempty"`

	SQLiteCode     int `json:"sqlite_code,omitempty"`
	SQLiteExtended int `json:"sqlite_extended,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	for _, fill := range []func(error, *ErrorDump) bool{fillMySQL, fillPgx, fillPQ, fillSQLite} {
		if fill(err, &d) {
			break
		}
	}
	return d
}

func fillMySQL(err error, d *ErrorDump) bool {
	var e *mysql.MySQLError
	if !errors.As(err, &e) {
		return false
	}
	d.MySQLNumber, d.MySQLState, d.MySQLMessage = e.Number, string(e.SQLState[:]), e.Message
	return true
}

func fillPgx(err error, d *ErrorDump) bool {
	var e *pgconn.PgError
	if !errors.As(err, &e) {
		return false
	}
	d.PGCode, d.PGMessage, d.PGDetail = e.Code, e.Message, e.Detail
	d.PGTable, d.PGColumn, d.PGConstraint = e.TableName, e.ColumnName, e.ConstraintName
	return true
}

func fillPQ(err error, d *ErrorDump) bool {
	var e *pq.Error
	if !errors.As(err, &e) {
		return false
	}
	d.PGCode, d.PGMessage, d.PGDetail = string(e.Code), e.Message, e.Detail
	d.PGTable, d.PGColumn, d.PGConstraint = e.Table, e.Column, e.Constraint
	return true
}

func fillSQLite(err error, d *ErrorDump) bool {
	var e sqlite3.Error
	if !errors.As(err, &e) {
		return false
	}
	d.SQLiteCode, d.SQLiteExtended = int(e.Code), int(e.ExtendedCode)
	return true
}
