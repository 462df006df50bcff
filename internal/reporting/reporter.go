// File: internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Supported output formats.
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Render serializes an execution report to its caller-facing JSON form.
// The output is deterministic: the same report always yields byte-identical
// bytes, fields appear in the order goal, extracted, error, and the error
// key is omitted entirely when absent.
func Render(report *schemas.ExecutionReport) ([]byte, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to render execution report: %w", err)
	}
	return data, nil
}

// FormatFinal expands {id} placeholders in a final-report template with the
// corresponding extracted values. An id absent from the mapping expands to
// the empty string rather than failing.
func FormatFinal(template string, extracted *schemas.ExtractedValues) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			b.WriteString(template)
			break
		}
		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			b.WriteString(template)
			break
		}
		end += open

		b.WriteString(template[:open])
		id := template[open+1 : end]
		if v, ok := extracted.Get(id); ok {
			b.WriteString(v)
		}
		template = template[end+1:]
	}
	return b.String()
}

// Reporter writes rendered execution reports to a file or stdout.
type Reporter struct {
	out    io.Writer
	closer io.Closer
	format string
	logger *zap.Logger
}

// New creates a Reporter for the given format ("json" or "pretty"). An
// empty outputPath writes to stdout.
func New(format, outputPath string, logger *zap.Logger) (*Reporter, error) {
	switch format {
	case FormatJSON, FormatPretty:
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}

	r := &Reporter{
		out:    os.Stdout,
		format: format,
		logger: logger.Named("reporter"),
	}

	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create report file %q: %w", outputPath, err)
		}
		r.out = f
		r.closer = f
	}
	return r, nil
}

// Write renders the report in the configured format and writes it out. For
// pretty output, final-report templates from the plan are expanded beneath
// the extracted values.
func (r *Reporter) Write(report *schemas.ExecutionReport, finalReport map[string]string) error {
	switch r.format {
	case FormatJSON:
		data, err := Render(report)
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if _, err := r.out.Write(data); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil

	case FormatPretty:
		return r.writePretty(report, finalReport)

	default:
		return fmt.Errorf("unsupported report format: %q", r.format)
	}
}

func (r *Reporter) writePretty(report *schemas.ExecutionReport, finalReport map[string]string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Goal: %s\n", report.Goal)

	if report.Extracted.Len() > 0 {
		b.WriteString("\n--- Extracted Values ---\n")
		for _, id := range report.Extracted.Keys() {
			v, _ := report.Extracted.Get(id)
			fmt.Fprintf(&b, "%s: %s\n", id, v)
		}
	}

	if len(finalReport) > 0 {
		b.WriteString("\n")
		// Templates are rendered in sorted key order for stable output.
		for _, key := range sortedKeys(finalReport) {
			fmt.Fprintf(&b, "%s\n", FormatFinal(finalReport[key], report.Extracted))
		}
	}

	if report.Error != nil {
		fmt.Fprintf(&b, "\nError at step %d: %s\n", report.Error.StepIndex, report.Error.Message)
	} else {
		b.WriteString("\nSuccess! Plan executed.\n")
	}

	if _, err := io.WriteString(r.out, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close releases the underlying file, if any.
func (r *Reporter) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
