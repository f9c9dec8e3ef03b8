package server

import (
	"context"

	"github.com/glimps-re/defhost/pkg/datamodel"
)

var _ Defender = &MockDefender{}

type MockDefender struct {
	StatusMock             func(ctx context.Context) (datamodel.DefenderStatus, error)
	UpdateDefinitionsMock  func(ctx context.Context) (datamodel.OperationResult, error)
	RefreshDetectionMock   func(ctx context.Context) (datamodel.OperationResult, error)
	IsScanRunningMock      func(ctx context.Context) (bool, error)
	QuickScanMock          func(ctx context.Context) (datamodel.ScanResult, error)
	FullScanMock           func(ctx context.Context) (datamodel.ScanResult, error)
	CustomScanMock         func(ctx context.Context, path string) (datamodel.ScanResult, error)
	CancelScanMock         func(ctx context.Context) (datamodel.OperationResult, error)
	HistoryMock            func(ctx context.Context) ([]datamodel.ScanHistoryItem, error)
	LastScanSummaryMock    func(ctx context.Context, scanType string) (datamodel.ScanSummary, error)
	ThreatsMock            func(ctx context.Context) (datamodel.ThreatSummary, error)
	QuarantineThreatMock   func(ctx context.Context, threatID uint64) (datamodel.OperationResult, error)
	RemoveThreatMock       func(ctx context.Context, threatID uint64) (datamodel.OperationResult, error)
	AllowThreatMock        func(ctx context.Context, threatID uint64, path string) (datamodel.OperationResult, error)
	RestoreThreatMock      func(ctx context.Context, threatID uint64) (datamodel.OperationResult, error)
	InspectMock            func(ctx context.Context, threatID uint64) (datamodel.InspectResult, error)
	CleanQuarantineMock    func(ctx context.Context) (datamodel.OperationResult, error)
	RemoveAllThreatsMock   func(ctx context.Context) (datamodel.OperationResult, error)
	CleanThreatHistoryMock func(ctx context.Context) (datamodel.OperationResult, error)
	ExclusionsMock         func(ctx context.Context) ([]string, error)
	AddExclusionMock       func(ctx context.Context, path string) (datamodel.OperationResult, error)
	RemoveExclusionMock    func(ctx context.Context, path string) (datamodel.OperationResult, error)
}

func (m *MockDefender) Status(ctx context.Context) (datamodel.DefenderStatus, error) {
	if m.StatusMock != nil {
		return m.StatusMock(ctx)
	}
	panic("StatusMock not implemented")
}

func (m *MockDefender) UpdateDefinitions(ctx context.Context) (datamodel.OperationResult, error) {
	if m.UpdateDefinitionsMock != nil {
		return m.UpdateDefinitionsMock(ctx)
	}
	panic("UpdateDefinitionsMock not implemented")
}

func (m *MockDefender) RefreshDetection(ctx context.Context) (datamodel.OperationResult, error) {
	if m.RefreshDetectionMock != nil {
		return m.RefreshDetectionMock(ctx)
	}
	panic("RefreshDetectionMock not implemented")
}

func (m *MockDefender) IsScanRunning(ctx context.Context) (bool, error) {
	if m.IsScanRunningMock != nil {
		return m.IsScanRunningMock(ctx)
	}
	panic("IsScanRunningMock not implemented")
}

func (m *MockDefender) QuickScan(ctx context.Context) (datamodel.ScanResult, error) {
	if m.QuickScanMock != nil {
		return m.QuickScanMock(ctx)
	}
	panic("QuickScanMock not implemented")
}

func (m *MockDefender) FullScan(ctx context.Context) (datamodel.ScanResult, error) {
	if m.FullScanMock != nil {
		return m.FullScanMock(ctx)
	}
	panic("FullScanMock not implemented")
}

func (m *MockDefender) CustomScan(ctx context.Context, path string) (datamodel.ScanResult, error) {
	if m.CustomScanMock != nil {
		return m.CustomScanMock(ctx, path)
	}
	panic("CustomScanMock not implemented")
}

func (m *MockDefender) CancelScan(ctx context.Context) (datamodel.OperationResult, error) {
	if m.CancelScanMock != nil {
		return m.CancelScanMock(ctx)
	}
	panic("CancelScanMock not implemented")
}

func (m *MockDefender) History(ctx context.Context) ([]datamodel.ScanHistoryItem, error) {
	if m.HistoryMock != nil {
		return m.HistoryMock(ctx)
	}
	panic("HistoryMock not implemented")
}

func (m *MockDefender) LastScanSummary(ctx context.Context, scanType string) (datamodel.ScanSummary, error) {
	if m.LastScanSummaryMock != nil {
		return m.LastScanSummaryMock(ctx, scanType)
	}
	panic("LastScanSummaryMock not implemented")
}

func (m *MockDefender) Threats(ctx context.Context) (datamodel.ThreatSummary, error) {
	if m.ThreatsMock != nil {
		return m.ThreatsMock(ctx)
	}
	panic("ThreatsMock not implemented")
}

func (m *MockDefender) QuarantineThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error) {
	if m.QuarantineThreatMock != nil {
		return m.QuarantineThreatMock(ctx, threatID)
	}
	panic("QuarantineThreatMock not implemented")
}

func (m *MockDefender) RemoveThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error) {
	if m.RemoveThreatMock != nil {
		return m.RemoveThreatMock(ctx, threatID)
	}
	panic("RemoveThreatMock not implemented")
}

func (m *MockDefender) AllowThreat(ctx context.Context, threatID uint64, path string) (datamodel.OperationResult, error) {
	if m.AllowThreatMock != nil {
		return m.AllowThreatMock(ctx, threatID, path)
	}
	panic("AllowThreatMock not implemented")
}

func (m *MockDefender) RestoreThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error) {
	if m.RestoreThreatMock != nil {
		return m.RestoreThreatMock(ctx, threatID)
	}
	panic("RestoreThreatMock not implemented")
}

func (m *MockDefender) Inspect(ctx context.Context, threatID uint64) (datamodel.InspectResult, error) {
	if m.InspectMock != nil {
		return m.InspectMock(ctx, threatID)
	}
	panic("InspectMock not implemented")
}

func (m *MockDefender) CleanQuarantine(ctx context.Context) (datamodel.OperationResult, error) {
	if m.CleanQuarantineMock != nil {
		return m.CleanQuarantineMock(ctx)
	}
	panic("CleanQuarantineMock not implemented")
}

func (m *MockDefender) RemoveAllThreats(ctx context.Context) (datamodel.OperationResult, error) {
	if m.RemoveAllThreatsMock != nil {
		return m.RemoveAllThreatsMock(ctx)
	}
	panic("RemoveAllThreatsMock not implemented")
}

func (m *MockDefender) CleanThreatHistory(ctx context.Context) (datamodel.OperationResult, error) {
	if m.CleanThreatHistoryMock != nil {
		return m.CleanThreatHistoryMock(ctx)
	}
	panic("CleanThreatHistoryMock not implemented")
}

func (m *MockDefender) Exclusions(ctx context.Context) ([]string, error) {
	if m.ExclusionsMock != nil {
		return m.ExclusionsMock(ctx)
	}
	panic("ExclusionsMock not implemented")
}

func (m *MockDefender) AddExclusion(ctx context.Context, path string) (datamodel.OperationResult, error) {
	if m.AddExclusionMock != nil {
		return m.AddExclusionMock(ctx, path)
	}
	panic("AddExclusionMock not implemented")
}

func (m *MockDefender) RemoveExclusion(ctx context.Context, path string) (datamodel.OperationResult, error) {
	if m.RemoveExclusionMock != nil {
		return m.RemoveExclusionMock(ctx, path)
	}
	panic("RemoveExclusionMock not implemented")
}

var _ Cleaner = &MockCleaner{}

type MockCleaner struct {
	CategoriesMock     func() []datamodel.CleanupCategory
	AnalyzeMock        func(ctx context.Context) (datamodel.CleanupAnalysis, error)
	CleanMock          func(ctx context.Context, ids []string) (datamodel.CleanupResult, error)
	CleanTempFilesMock func(ctx context.Context) (datamodel.CleanResult, error)
}

func (m *MockCleaner) Categories() []datamodel.CleanupCategory {
	if m.CategoriesMock != nil {
		return m.CategoriesMock()
	}
	panic("CategoriesMock not implemented")
}

func (m *MockCleaner) Analyze(ctx context.Context) (datamodel.CleanupAnalysis, error) {
	if m.AnalyzeMock != nil {
		return m.AnalyzeMock(ctx)
	}
	panic("AnalyzeMock not implemented")
}

func (m *MockCleaner) Clean(ctx context.Context, ids []string) (datamodel.CleanupResult, error) {
	if m.CleanMock != nil {
		return m.CleanMock(ctx, ids)
	}
	panic("CleanMock not implemented")
}

func (m *MockCleaner) CleanTempFiles(ctx context.Context) (datamodel.CleanResult, error) {
	if m.CleanTempFilesMock != nil {
		return m.CleanTempFilesMock(ctx)
	}
	panic("CleanTempFilesMock not implemented")
}
