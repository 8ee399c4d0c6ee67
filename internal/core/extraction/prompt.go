package extraction

import (
	"strconv"
	"strings"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

// BuildPrompt composes the single stateless instruction sent to the model.
// The recognized text always goes last.
func BuildPrompt(rawText string) string {
	fields := domain.Fields()
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		labels = append(labels, strconv.Quote(f.Label()))
	}

	var b strings.Builder
	b.WriteString("Extract details from the given text recognized from an identity document image.\n")
	b.WriteString("Instructions:\n")
	b.WriteString("Return one JSON object with exactly these keys: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString(".\n")
	b.WriteString(`Write "` + domain.FieldDateOfBirth.Label() + `" as MM/DD/YYYY.` + "\n")
	b.WriteString("If a field is not found, return an empty string for it.\n")
	b.WriteString("Output should be in JSON format.\n")
	b.WriteString("This is the text:\n")
	b.WriteString(rawText)
	return b.String()
}
