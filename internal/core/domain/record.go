package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldName is one member of the closed identity field schema.
type FieldName string

const (
	FieldFullName    FieldName = "full_name"
	FieldDateOfBirth FieldName = "date_of_birth"
	FieldNationality FieldName = "nationality"
	FieldIDNumber    FieldName = "identification_number"
	FieldAddress     FieldName = "address"
	FieldCity        FieldName = "city"
	FieldPostalCode  FieldName = "postal_code"
	FieldCountry     FieldName = "country"
	FieldIssueDate   FieldName = "issue_date"
)

var fieldOrder = []FieldName{
	FieldFullName,
	FieldDateOfBirth,
	FieldNationality,
	FieldIDNumber,
	FieldAddress,
	FieldCity,
	FieldPostalCode,
	FieldCountry,
	FieldIssueDate,
}

var fieldLabels = map[FieldName]string{
	FieldFullName:    "Full Name",
	FieldDateOfBirth: "Date of Birth",
	FieldNationality: "Nationality",
	FieldIDNumber:    "Identification Number",
	FieldAddress:     "Address",
	FieldCity:        "City",
	FieldPostalCode:  "Pincode/Zip",
	FieldCountry:     "Country",
	FieldIssueDate:   "Issue Date",
}

// Fields returns the schema in display order. The slice is a copy.
func Fields() []FieldName {
	out := make([]FieldName, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// Label is the human-readable name used on documents and in model prompts.
func (f FieldName) Label() string {
	return fieldLabels[f]
}

func (f FieldName) Valid() bool {
	_, ok := fieldLabels[f]
	return ok
}

// FieldByLabel resolves a human label to its field. An exact match wins over a
// case-insensitive one.
func FieldByLabel(label string) (FieldName, bool) {
	label = strings.TrimSpace(label)
	for _, f := range fieldOrder {
		if fieldLabels[f] == label {
			return f, true
		}
	}
	for _, f := range fieldOrder {
		if strings.EqualFold(fieldLabels[f], label) {
			return f, true
		}
	}
	return "", false
}

// Record is the structured result of one extraction. Every schema field is
// always present in Fields; an empty value means the field was not detected.
// A fallback record carries the unparsed model reply and no field values.
type Record struct {
	Fields          map[FieldName]string
	Fallback        bool
	RawFallbackText string
}

func NewRecord() Record {
	fields := make(map[FieldName]string, len(fieldOrder))
	for _, f := range fieldOrder {
		fields[f] = ""
	}
	return Record{Fields: fields}
}

func NewFallbackRecord(raw string) Record {
	rec := NewRecord()
	rec.Fallback = true
	rec.RawFallbackText = raw
	return rec
}

func (r Record) Get(f FieldName) string {
	return r.Fields[f]
}

func (r Record) Has(f FieldName) bool {
	return r.Fields[f] != ""
}

// Set stores a value for a schema field. Names outside the schema are ignored.
func (r *Record) Set(f FieldName, value string) {
	if !f.Valid() {
		return
	}
	if r.Fields == nil {
		*r = NewRecord()
	}
	r.Fields[f] = value
}

func (r Record) IsFallback() bool {
	return r.Fallback
}

func (r Record) Clone() Record {
	out := NewRecord()
	for _, f := range fieldOrder {
		out.Fields[f] = r.Fields[f]
	}
	out.Fallback = r.Fallback
	out.RawFallbackText = r.RawFallbackText
	return out
}

func (r Record) Equal(other Record) bool {
	if r.Fallback != other.Fallback || r.RawFallbackText != other.RawFallbackText {
		return false
	}
	for _, f := range fieldOrder {
		if r.Fields[f] != other.Fields[f] {
			return false
		}
	}
	return true
}

// Detected counts the fields carrying a value.
func (r Record) Detected() int {
	n := 0
	for _, f := range fieldOrder {
		if r.Fields[f] != "" {
			n++
		}
	}
	return n
}

type recordJSON struct {
	Fields          map[FieldName]string `json:"fields"`
	Fallback        bool                 `json:"fallback"`
	RawFallbackText string               `json:"raw_fallback_text,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	full := r.Clone()
	return json.Marshal(recordJSON{
		Fields:          full.Fields,
		Fallback:        full.Fallback,
		RawFallbackText: full.RawFallbackText,
	})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	out := NewRecord()
	for f, v := range raw.Fields {
		out.Set(f, v)
	}
	out.Fallback = raw.Fallback
	out.RawFallbackText = raw.RawFallbackText
	*r = out
	return nil
}
