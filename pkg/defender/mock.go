package defender

import (
	"context"

	"github.com/glimps-re/go-gdetect/pkg/gdetect"
)

var _ Submitter = &MockSubmitter{}

type MockSubmitter struct {
	WaitForFileMock          func(ctx context.Context, filepath string, options gdetect.WaitForOptions) (result gdetect.Result, err error)
	ExtractExpertViewURLMock func(result *gdetect.Result) (urlExpertView string, err error)
}

func (m *MockSubmitter) WaitForFile(ctx context.Context, filepath string, options gdetect.WaitForOptions) (result gdetect.Result, err error) {
	if m.WaitForFileMock != nil {
		return m.WaitForFileMock(ctx, filepath, options)
	}
	panic("WaitForFileMock not implemented")
}

func (m *MockSubmitter) ExtractExpertViewURL(result *gdetect.Result) (urlExpertView string, err error) {
	if m.ExtractExpertViewURLMock != nil {
		return m.ExtractExpertViewURLMock(result)
	}
	panic("ExtractExpertViewURLMock not implemented")
}
