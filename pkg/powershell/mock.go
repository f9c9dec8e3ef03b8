package powershell

import "context"

var _ Runner = &MockRunner{}

type MockRunner struct {
	RunMock func(ctx context.Context, script string) (output string, err error)
}

func (m *MockRunner) Run(ctx context.Context, script string) (string, error) {
	if m.RunMock != nil {
		return m.RunMock(ctx, script)
	}
	panic("RunMock not implemented")
}
