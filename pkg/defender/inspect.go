package defender

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/glimps-re/defhost/pkg/datamodel"
)

// Inspect submits the file of a detection to GLIMPS Malware and waits for
// the verdict.
func (d *Defender) Inspect(ctx context.Context, threatID uint64) (result datamodel.InspectResult, err error) {
	if d.submitter == nil {
		err = ErrInspectDisabled
		return
	}
	threat, err := d.threat(ctx, threatID)
	if err != nil {
		return
	}
	if threat.FilePath == datamodel.UnknownPath {
		err = ErrUnknownPath
		return
	}
	if !threat.FileExists {
		err = fmt.Errorf("file %s no longer exists", threat.FilePath)
		return
	}

	opts := d.waitOpts
	opts.Filename = threat.FilePath
	gdetectResult, err := d.submitter.WaitForFile(ctx, threat.FilePath, opts)
	if err != nil {
		err = fmt.Errorf("could not analyze %s: %w", threat.FilePath, err)
		return
	}
	expertViewURL, urlErr := d.submitter.ExtractExpertViewURL(&gdetectResult)
	if urlErr != nil {
		logger.Debug("no expert view url", slog.String("file", threat.FilePath), slog.String("error", urlErr.Error()))
	}

	result = datamodel.InspectResult{
		ThreatID:      threat.ThreatID,
		ThreatName:    threat.ThreatName,
		FilePath:      threat.FilePath,
		SHA256:        gdetectResult.SHA256,
		Malware:       gdetectResult.Malware,
		Malwares:      gdetectResult.Malwares,
		FileType:      gdetectResult.FileType,
		ExpertViewURL: expertViewURL,
		AnalysisError: gdetectResult.Error,
	}
	if len(gdetectResult.Errors) > 0 {
		errs := make([]string, 0, len(gdetectResult.Errors))
		for k, v := range gdetectResult.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", k, v))
		}
		sort.Strings(errs)
		result.AnalysisError = strings.Join(errs, ",")
	}
	logger.Info("threat inspected", slog.Uint64("threat-id", threatID), slog.String("file", threat.FilePath), slog.Bool("malware", result.Malware))
	return
}
