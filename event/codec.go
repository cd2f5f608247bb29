package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidJSON is returned when an imported payload is not JSON
	ErrInvalidJSON = errors.New("invalid JSON format")
	// ErrInvalidFormat is returned when an imported payload lacks required fields
	ErrInvalidFormat = errors.New("invalid event format")
)

// DefaultExportName names an export of an event without a name
const DefaultExportName = "event"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses an imported event document.
//
// Only presence is checked: name, description, recurrence and
// dateRange.startDate must be present and non-empty. Whether the recurrence
// can be expanded is left to Document.Validate. Dates may be RFC 3339
// timestamps or YYYY-MM-DD.
func Decode(data []byte) (Document, error) {
	if !json.Valid(data) {
		return Document{}, ErrInvalidJSON
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := validate.Struct(doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if doc.DateRange.StartDate.IsZero() {
		return Document{}, fmt.Errorf("%w: dateRange.startDate is required", ErrInvalidFormat)
	}
	return doc, nil
}

// Encode renders doc as compact JSON
func Encode(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

// EncodeIndent renders doc as indented JSON for file export
func EncodeIndent(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// ExportFileName returns the download name for an exported document
func ExportFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultExportName
	}
	return name + ".json"
}

// ShareURL builds a link that opens the import page with doc pre-filled
func ShareURL(base string, doc Document) (string, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(base, "/") + "/import?data=" + url.QueryEscape(string(data)), nil
}

// ParseShareURL decodes the document carried by a share link
func ParseShareURL(raw string) (Document, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	data := u.Query().Get("data")
	if data == "" {
		return Document{}, fmt.Errorf("%w: share link has no data", ErrInvalidJSON)
	}
	return Decode([]byte(data))
}
