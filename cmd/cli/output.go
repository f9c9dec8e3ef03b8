package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"gopkg.in/yaml.v3"
)

// printResult writes v to w in the configured output format. YAML keeps the
// JSON field names and order.
func printResult(w io.Writer, v any) (err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		err = fmt.Errorf("could not encode result: %w", err)
		return
	}
	if hostConfig.Output != "yaml" {
		_, err = fmt.Fprintln(w, string(data))
		return
	}
	var node yaml.Node
	if err = yaml.Unmarshal(data, &node); err != nil {
		err = fmt.Errorf("could not convert result to yaml: %w", err)
		return
	}
	resetStyle(&node)
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err = encoder.Encode(&node); err != nil {
		return
	}
	err = encoder.Close()
	return
}

// resetStyle drops the JSON flow style and quotes so the node prints as block YAML.
func resetStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		resetStyle(child)
	}
}

// reportMutex serialises writers of the report file.
var reportMutex sync.Mutex

func appendReport(location string, report datamodel.Report) (err error) {
	reportMutex.Lock()
	defer reportMutex.Unlock()
	if dir := filepath.Dir(location); dir != "" {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return
		}
	}
	f, err := os.OpenFile(filepath.Clean(location), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return
	}
	defer func() {
		if e := f.Close(); e != nil {
			logger.Error("could not close report file", slog.String("error", e.Error()))
		}
	}()
	err = datamodel.NewReportsWriter(f).Write(report)
	return
}

// emitReport appends report to the report file and uploads it when export is
// enabled. Failures are logged, they never fail the command.
func emitReport(ctx context.Context, report datamodel.Report) {
	if hostConfig.Report.Location != "" {
		if err := appendReport(hostConfig.Report.Location, report); err != nil {
			logger.Error("could not write report", slog.String("location", hostConfig.Report.Location), slog.String("error", err.Error()))
		}
	}
	if hostServices.exporter != nil {
		if _, err := hostServices.exporter.Upload(ctx, report); err != nil {
			logger.Error("could not export report", slog.String("error", err.Error()))
		}
	}
}

// newReport builds a report of kind, carrying err when the command failed.
func newReport(kind datamodel.ReportKind, err error) (report datamodel.Report) {
	report = datamodel.NewReport(kind)
	if err != nil {
		report.Error = err.Error()
	}
	return
}
