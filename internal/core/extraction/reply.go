package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

const fence = "```"

var errNotObject = errors.New("model reply is not a json object")

// UnwrapFence removes at most one leading fence line (with an optional bare
// language tag) and one trailing fence. Replies without fences come back
// untouched.
func UnwrapFence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, fence) && !strings.HasSuffix(trimmed, fence) {
		return reply
	}

	body := trimmed
	if strings.HasPrefix(body, fence) {
		body = body[len(fence):]
		line, rest, found := strings.Cut(body, "\n")
		if isFenceTag(line) {
			if found {
				body = rest
			} else {
				body = ""
			}
		}
	}
	body = strings.TrimSuffix(body, fence)
	return strings.TrimSpace(body)
}

func isFenceTag(line string) bool {
	for _, r := range strings.TrimSpace(line) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case '-', '_', '+', '.':
			continue
		}
		return false
	}
	return true
}

// DecodeReply parses an unwrapped reply into a record. Unknown keys are
// ignored and missing ones stay absent. It fails only when the reply is not a
// single JSON object.
func DecodeReply(body string) (domain.Record, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return domain.Record{}, err
	}
	return recordFromObject(obj), nil
}

func decodeObject(body string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode model reply: trailing content after json value")
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// recordFromObject maps reply keys onto fields. An exact label beats a
// case-insensitive one; among case-insensitive keys the first in sorted order
// wins, so identical replies always yield identical records.
func recordFromObject(obj map[string]any) domain.Record {
	rec := domain.NewRecord()
	taken := make(map[domain.FieldName]bool, len(obj))

	for _, key := range slices.Sorted(maps.Keys(obj)) {
		f, ok := domain.FieldByLabel(key)
		if !ok || key != f.Label() {
			continue
		}
		rec.Set(f, replyValue(obj[key]))
		taken[f] = true
	}
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		f, ok := domain.FieldByLabel(key)
		if !ok || taken[f] {
			continue
		}
		rec.Set(f, replyValue(obj[key]))
		taken[f] = true
	}
	return rec
}

func replyValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

var replySchema = mustCompileReplySchema()

func mustCompileReplySchema() *jsonschema.Schema {
	props := make(map[string]any)
	for _, f := range domain.Fields() {
		props[f.Label()] = map[string]any{"type": []string{"string", "number", "null"}}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("marshal reply schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("reply.json", bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add reply schema: %v", err))
	}
	return compiler.MustCompile("reply.json")
}

// validateReply reports schema drift in a decoded reply: extra keys or values
// that are not scalars. Drift is informational only.
func validateReply(obj map[string]any) error {
	if err := replySchema.Validate(obj); err != nil {
		return fmt.Errorf("model reply does not match schema: %w", err)
	}
	return nil
}
