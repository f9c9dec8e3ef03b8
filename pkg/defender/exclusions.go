package defender

import (
	"context"
	"fmt"
	"strings"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/journal"
	"github.com/glimps-re/defhost/pkg/powershell"
)

func (d *Defender) Exclusions(ctx context.Context) (paths []string, err error) {
	output, err := d.runner.Run(ctx, exclusionsScript)
	if err != nil {
		err = fmt.Errorf("could not list exclusions: %w", err)
		return
	}
	return powershell.DecodeList[string](output)
}

func (d *Defender) AddExclusion(ctx context.Context, path string) (result datamodel.OperationResult, err error) {
	path = strings.TrimSpace(path)
	if path == "" {
		err = ErrEmptyPath
		return
	}
	return d.remediate(ctx, journal.ActionAddExclusion, path, addExclusionScript(path, "Exclusion added"))
}

func (d *Defender) RemoveExclusion(ctx context.Context, path string) (result datamodel.OperationResult, err error) {
	path = strings.TrimSpace(path)
	if path == "" {
		err = ErrEmptyPath
		return
	}
	return d.remediate(ctx, journal.ActionRemoveExclusion, path, removeExclusionScript(path))
}
