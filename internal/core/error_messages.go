// Package core provides the reconciliation engine for relief CSV imports and exports.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When operators encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this ID already exists (SQLSTATE 23505)
//	DB002 - Unique constraint: This value must be unique but already exists
//	DB003 - Foreign key: Referenced record does not exist (SQLSTATE 23503)
//	DB004 - Connection refused: Unable to connect to database (SQLSTATE 08001, 08004)
//	DB005 - Connection reset: Database connection was interrupted (SQLSTATE 08006)
//	DB006 - Timeout: Operation timed out (SQLSTATE 57014)
//	DB007 - Deadlock: Database was busy with conflicting operations (SQLSTATE 40P01)
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid number: A numeric field could not be read
//	VAL002 - Required field: Required field is empty
//	VAL003 - Missing column: Required column is missing from the CSV header
//	VAL004 - Invalid enum: Value is not in the allowed list
//	VAL005 - Related entity: The referenced grid or area does not exist
//	VAL006 - Unexpected cells: Row has more cells than the header
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the configured size limit
//	FILE002 - Invalid CSV: Quoting or structure could not be parsed
//	FILE003 - Encoding error: File could not be decoded
//	FILE004 - No file: No file was supplied
//	FILE005 - Empty file: The file has no header line
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - System busy: Too many imports in progress
//	IMP002 - Request cancelled: The client went away mid-batch
//	IMP003 - Request timeout: The request deadline passed mid-batch
//
// # Family Errors (FAM001-FAM099)
//
//	FAM001 - Unknown family: The family key is not registered
//	FAM002 - No trash variant: The family has no trash import/export
//
// # Authorization Errors (AUTH001-AUTH099)
//
//	AUTH001 - Forbidden: The actor's role may not perform the operation
//	AUTH002 - Invalid API key: The X-API-Key header is missing or wrong
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// An error is resolved to a code in three passes: the package sentinels it
// wraps, then the SQLSTATE of a wrapped database error, then a
// case-insensitive substring match on its text. The first hit wins.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// codeDefault is returned when nothing matches. Support staff should check
// the logs for the technical error when users report it.
const codeDefault = "ERR000"

// messages is the catalog of every support code.
var messages = map[string]UserMessage{
	"DB001": {"A record with this ID already exists", "Remove the ID column or use a new ID", "DB001"},
	"DB002": {"This value must be unique but already exists", "Check for duplicate entries in your CSV", "DB002"},
	"DB003": {"Referenced record does not exist", "Import the referenced records first", "DB003"},
	"DB004": {"Unable to connect to database", "Please try again in a few moments", "DB004"},
	"DB005": {"Database connection was interrupted", "Please try again", "DB005"},
	"DB006": {"Operation timed out", "Try a smaller file or try again later", "DB006"},
	"DB007": {"Database was busy with conflicting operations", "Please try again", "DB007"},

	"VAL001": {"Invalid number format detected", "Use plain digits with an optional decimal point", "VAL001"},
	"VAL002": {"Required field is empty", "Fill every column marked （必填）", "VAL002"},
	"VAL003": {"Required column is missing from CSV", "Start from the downloaded template", "VAL003"},
	"VAL004": {"Value is not in the allowed list", "Use one of the values listed in the column header", "VAL004"},
	"VAL005": {"Referenced grid or area does not exist", "Create or import the referenced record first", "VAL005"},
	"VAL006": {"Row has more cells than the header", "Remove stray commas or add the missing header", "VAL006"},

	"FILE001": {"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"},
	"FILE002": {"File is not a valid CSV", "Check quoting; every quoted cell must be closed", "FILE002"},
	"FILE003": {"File could not be decoded", "Save the file as UTF-8 CSV", "FILE003"},
	"FILE004": {"No file was supplied", "Attach a CSV file in the file field", "FILE004"},
	"FILE005": {"The uploaded file is empty", "Upload a CSV file with a header line", "FILE005"},

	"IMP001": {"System is busy processing other imports", "Please wait a moment and try again", "IMP001"},
	"IMP002": {"Request was cancelled", "Rows before the cancellation were saved; re-import to finish", "IMP002"},
	"IMP003": {"Request timed out", "Rows before the timeout were saved; re-import to finish", "IMP003"},

	"FAM001": {"Unknown data family", "Check the family name against /api/families", "FAM001"},
	"FAM002": {"This family has no trash import or export", "Use the normal import or export", "FAM002"},

	"AUTH001": {"You are not allowed to perform this operation", "Ask an administrator for access", "AUTH001"},
	"AUTH002": {"Missing or invalid API key", "Send a valid X-API-Key header", "AUTH002"},

	codeDefault: {"An unexpected error occurred", "Please try again or contact support", codeDefault},
}

// sentinelCodes resolves errors the engine produces itself.
var sentinelCodes = []struct {
	err  error
	code string
}{
	{ErrFileTooLarge, "FILE001"},
	{ErrMalformedCSV, "FILE002"},
	{ErrEmptyFile, "FILE005"},
	{ErrTooManyImports, "IMP001"},
	{ErrUnknownFamily, "FAM001"},
	{ErrTrashUnsupported, "FAM002"},
	{ErrForbidden, "AUTH001"},
	{ErrRelatedNotFound, "VAL005"},
	{context.Canceled, "IMP002"},
	{context.DeadlineExceeded, "IMP003"},
}

// sqlStateCodes resolves Postgres errors by SQLSTATE.
var sqlStateCodes = map[string]string{
	"23505": "DB001",  // unique_violation
	"23503": "DB003",  // foreign_key_violation
	"23502": "VAL002", // not_null_violation
	"22P02": "VAL001", // invalid_text_representation
	"08001": "DB004",
	"08004": "DB004",
	"08006": "DB005",
	"57014": "DB006", // query_canceled (statement_timeout)
	"40P01": "DB007", // deadlock_detected
}

// sqlStater is satisfied by *pgconn.PgError.
type sqlStater interface {
	SQLState() string
}

// patternCodes resolves everything else by error text. Order matters.
var patternCodes = []struct {
	pattern string
	code    string
}{
	{"duplicate key", "DB001"},
	{"unique constraint", "DB002"},
	{"violates unique", "DB002"},
	{"foreign key constraint", "DB003"},
	{"violates foreign key", "DB003"},
	{"connection refused", "DB004"},
	{"connection reset", "DB005"},
	{"timeout", "DB006"},
	{"deadlock", "DB007"},
	{"invalid number", "VAL001"},
	{"required field", "VAL002"},
	{"missing required column", "VAL003"},
	{"invalid enum", "VAL004"},
	{"related entity not found", "VAL005"},
	{"beyond the header", "VAL006"},
	{"file too large", "FILE001"},
	{"invalid csv", "FILE002"},
	{"encoding error", "FILE003"},
	{"no file provided", "FILE004"},
	{"empty file", "FILE005"},
	{"too many imports", "IMP001"},
	{"context canceled", "IMP002"},
	{"context deadline exceeded", "IMP003"},
	{"unknown family", "FAM001"},
	{"trash variant not supported", "FAM002"},
	{"operation not permitted", "AUTH001"},
	{"invalid api key", "AUTH002"},
}

// errorCode returns the support code for err, or codeDefault.
func errorCode(err error) string {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}

	var pgErr sqlStater
	if errors.As(err, &pgErr) {
		if code, ok := sqlStateCodes[pgErr.SQLState()]; ok {
			return code
		}
	}

	text := strings.ToLower(err.Error())
	for _, p := range patternCodes {
		if strings.Contains(text, p.pattern) {
			return p.code
		}
	}
	return codeDefault
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage; an unrecognized one to ERR000.
//
// Example:
//
//	msg := MapError(errors.New("duplicate key violation"))
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return messages[errorCode(err)]
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	return err != nil && errorCode(err) != codeDefault
}
