package repository

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"google.golang.org/api/googleapi"
)

// StorageHint turns a lead-store failure into an operator-facing remedy. It
// returns "" when nothing specific can be suggested.
func StorageHint(err error) string {
	if err == nil {
		return ""
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := strings.ToLower(gerr.Message)
		switch {
		case gerr.Code == http.StatusForbidden && (strings.Contains(msg, "has not been used") || strings.Contains(msg, "disabled")):
			return "Enable the Google Sheets API for the service account's project."
		case gerr.Code == http.StatusForbidden:
			return "Share the spreadsheet with the service account email (Editor access)."
		case gerr.Code == http.StatusNotFound:
			return "Check GOOGLE_SHEET_ID; the spreadsheet was not found."
		case gerr.Code == http.StatusUnauthorized:
			return "Check GOOGLE_CREDENTIALS_JSON; the service account was rejected."
		case gerr.Code == http.StatusTooManyRequests:
			return "Google Sheets quota exceeded; retry in a minute."
		}
	}

	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		switch merr.Number {
		case 1045:
			return "Check the MySQL user and password."
		case 1049:
			return "The MySQL database does not exist; run the migrate command."
		case 1146:
			return "The leads table is missing; run the migrate command."
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "google credentials"), strings.Contains(msg, "credentials json"),
		strings.Contains(msg, "invalid character"):
		return "GOOGLE_CREDENTIALS_JSON is malformed; paste the full service account JSON."
	case strings.Contains(msg, "spreadsheet id"):
		return "Set GOOGLE_SHEET_ID to the id in the spreadsheet URL."
	case strings.Contains(msg, "connection refused"):
		return "The lead store is unreachable; check its host and port."
	}
	return ""
}
