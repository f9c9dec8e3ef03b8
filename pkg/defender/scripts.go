package defender

import (
	"fmt"

	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/powershell"
)

// Dates are converted to UTC ISO 8601 so that they parse as RFC 3339.
const isoDate = `function ConvertTo-IsoDate($d) { if ($d) { $d.ToUniversalTime().ToString('o') } else { $null } }
`

const computerStatusScript = isoDate + `$status = Get-MpComputerStatus -ErrorAction Stop
[ordered]@{
	RealTimeProtectionEnabled     = [bool]$status.RealTimeProtectionEnabled
	AntivirusEnabled              = [bool]$status.AntivirusEnabled
	AntivirusSignatureVersion     = [string]$status.AntivirusSignatureVersion
	AntivirusSignatureLastUpdated = ConvertTo-IsoDate $status.AntivirusSignatureLastUpdated
	QuickScanStartTime            = ConvertTo-IsoDate $status.QuickScanStartTime
	QuickScanEndTime              = ConvertTo-IsoDate $status.QuickScanEndTime
	FullScanStartTime             = ConvertTo-IsoDate $status.FullScanStartTime
	FullScanEndTime               = ConvertTo-IsoDate $status.FullScanEndTime
	QuickScanAge                  = [int]$status.QuickScanAge
	FullScanAge                   = [int]$status.FullScanAge
} | ConvertTo-Json -Compress
`

const updateDefinitionsScript = `try {
	Update-MpSignature -ErrorAction Stop
	Write-Output "SUCCESS: Definitions updated"
} catch {
	Write-Output "ERROR: $($_.Exception.Message)"
}
`

const refreshDetectionScript = `try {
	Update-MpSignature -ErrorAction SilentlyContinue
	Start-Sleep -Milliseconds 300
	Write-Output "SUCCESS: Status refreshed"
} catch {
	Write-Output "ERROR: $($_.Exception.Message)"
}
`

func startScanScript(scanType datamodel.ScanType, path string) string {
	scanPath := ""
	if scanType == datamodel.CustomScan {
		scanPath = " -ScanPath " + powershell.Quote(path)
	}
	return fmt.Sprintf(`try {
	Start-MpScan -ScanType %s%s -ErrorAction Stop
	Write-Output "SUCCESS"
} catch {
	Write-Output "ERROR: $($_.Exception.Message)"
}
`, scanType.Parameter(), scanPath)
}

const threatCountScript = `$threats = Get-MpThreatDetection
if ($threats) { @($threats).Count } else { 0 }
`

func fileCountScript(path string) string {
	return fmt.Sprintf(`try {
	(Get-ChildItem -LiteralPath %s -Recurse -File -ErrorAction SilentlyContinue | Measure-Object).Count
} catch {
	0
}
`, powershell.Quote(path))
}

const cancelScanScript = `try {
	Get-Process -Name "MpCmdRun" -ErrorAction SilentlyContinue | Stop-Process -Force -ErrorAction SilentlyContinue
	$scans = Get-WmiObject -Namespace "root\Microsoft\Windows\Defender" -Class MSFT_MpScan -ErrorAction SilentlyContinue
	if ($scans) {
		$scans | Remove-WmiObject -ErrorAction SilentlyContinue
	}
	Write-Output "SUCCESS: Scan cancelled"
} catch {
	Write-Output "ERROR: $($_.Exception.Message)"
}
`

// scanEventsScript lists the latest "scan completed" events, newest first.
const scanEventsScript = isoDate + `$events = @(Get-WinEvent -LogName "Microsoft-Windows-Windows Defender/Operational" -FilterXPath "*[System[(EventID=1001)]]" -MaxEvents 100 -ErrorAction SilentlyContinue)
@($events | ForEach-Object {
	[ordered]@{
		TimeCreated = ConvertTo-IsoDate $_.TimeCreated
		Message     = [string]$_.Message
	}
}) | ConvertTo-Json -Compress
`

// threatDetectionsScript joins detections with the threat catalogue. Codes
// are returned raw.
const threatDetectionsScript = isoDate + `$detections = Get-MpThreatDetection
if (-not $detections) {
	"[]"
	exit
}
$catalogue = @{}
foreach ($threat in @(Get-MpThreat -ErrorAction SilentlyContinue)) {
	$catalogue[[string]$threat.ThreatID] = $threat
}
@($detections | ForEach-Object {
	$known = $catalogue[[string]$_.ThreatID]
	$path = if ($_.Resources) { $_.Resources[0] -replace '^[^:]+:_', '' } else { $null }
	[ordered]@{
		ThreatID             = [uint64]$_.ThreatID
		ThreatName           = if ($known) { [string]$known.ThreatName } else { "" }
		SeverityID           = if ($known) { [int]$known.SeverityID } else { 0 }
		ThreatStatusID       = [int]$_.ThreatStatusID
		CleaningActionID     = [int]$_.CleaningActionID
		Resources            = @($_.Resources | Where-Object { $_ })
		FileExists           = [bool]($path -and (Test-Path -LiteralPath $path -ErrorAction SilentlyContinue))
		InitialDetectionTime = ConvertTo-IsoDate $_.InitialDetectionTime
	}
}) | ConvertTo-Json -Depth 4 -Compress
`

func quarantineScript(threatID uint64) string {
	return fmt.Sprintf(`try {
	$threat = Get-MpThreatDetection | Where-Object { $_.ThreatID -eq %d } | Select-Object -First 1
	if (-not $threat) {
		Write-Output "SUCCESS: Threat not found or already handled"
		exit
	}
	if ($threat.ThreatStatusID -eq 2 -or $threat.ThreatStatusID -eq 3) {
		Write-Output "SUCCESS: Threat already quarantined"
		exit
	}
	if ($threat.ThreatStatusID -eq 6) {
		Write-Output "SUCCESS: Threat already removed"
		exit
	}
	Remove-MpThreat -ThreatID $threat.ThreatID -ErrorAction SilentlyContinue
	Write-Output "SUCCESS: Threat quarantined"
} catch {
	Write-Output "ERROR: Quarantine failed: $($_.Exception.Message)"
}
`, threatID)
}

func removeScript(threatID uint64) string {
	return fmt.Sprintf(`try {
	$threat = Get-MpThreatDetection | Where-Object { $_.ThreatID -eq %d } | Select-Object -First 1
	if (-not $threat) {
		Write-Output "SUCCESS: Threat no longer exists"
		exit
	}
	try {
		Remove-MpThreat -ThreatID $threat.ThreatID -ErrorAction Stop
		Write-Output "SUCCESS: Threat removed by Windows Defender"
		exit
	} catch {}
	if (-not $threat.Resources) {
		Write-Output "SUCCESS: Threat removed from history"
		exit
	}
	$filePath = $threat.Resources[0] -replace '^[^:]+:_', ''
	if (-not (Test-Path -LiteralPath $filePath)) {
		Write-Output "SUCCESS: File no longer exists"
		exit
	}
	if (Get-Process | Where-Object { $_.Path -eq $filePath }) {
		Write-Output "SUCCESS: File in use, close the application and try again"
		exit
	}
	takeown /f "$filePath" /a /r /d Y 2>&1 | Out-Null
	icacls "$filePath" /grant Administrators:F /t /c /q 2>&1 | Out-Null
	try {
		Remove-Item -LiteralPath $filePath -Force -ErrorAction Stop
		Write-Output "SUCCESS: File deleted"
	} catch [System.UnauthorizedAccessException] {
		Write-Output "ERROR: Access denied, run as administrator or close the application"
	} catch {
		Write-Output "ERROR: Could not remove file: $($_.Exception.Message)"
	}
} catch {
	Write-Output "ERROR: Removal failed: $($_.Exception.Message)"
}
`, threatID)
}

func addExclusionScript(path string, success string) string {
	return fmt.Sprintf(`try {
	Add-MpPreference -ExclusionPath %s -ErrorAction Stop
	Write-Output "SUCCESS: %s"
} catch {
	Write-Output "ERROR: Could not add exclusion: $($_.Exception.Message)"
}
`, powershell.Quote(path), success)
}

func removeExclusionScript(path string) string {
	return fmt.Sprintf(`try {
	Remove-MpPreference -ExclusionPath %s -ErrorAction Stop
	Write-Output "SUCCESS: Exclusion removed"
} catch {
	Write-Output "ERROR: Could not remove exclusion: $($_.Exception.Message)"
}
`, powershell.Quote(path))
}

const exclusionsScript = `$preference = Get-MpPreference -ErrorAction Stop
@($preference.ExclusionPath | Where-Object { $_ }) | ConvertTo-Json -Compress
`

func restoreScript(threatID uint64) string {
	return fmt.Sprintf(`try {
	$threat = Get-MpThreatDetection | Where-Object { $_.ThreatID -eq %d } | Select-Object -First 1
	if (-not $threat) {
		Write-Output "ERROR: Threat not found"
		exit
	}
	if (-not $threat.Resources) {
		Write-Output "ERROR: Could not determine the file path"
		exit
	}
	$filePath = $threat.Resources[0] -replace '^[^:]+:_', ''
	Add-MpPreference -ExclusionPath $filePath -ErrorAction Stop
	Write-Output "SUCCESS: File restored and added to exclusions"
} catch {
	Write-Output "ERROR: Restore failed: $($_.Exception.Message)"
}
`, threatID)
}

const historyFolders = `	"C:\ProgramData\Microsoft\Windows Defender\Scans\History\Service\DetectionHistory",
	"C:\ProgramData\Microsoft\Windows Defender\Scans\History\CacheManager",
	"C:\ProgramData\Microsoft\Windows Defender\Scans\History\ReportLatency",
	"C:\ProgramData\Microsoft\Windows Defender\Scans\History\Store"`

func removeDetectionsScript(empty string, done string) string {
	return fmt.Sprintf(`try {
	$threats = Get-MpThreatDetection -ErrorAction SilentlyContinue
	if (-not $threats) {
		Write-Output "SUCCESS: %s"
		exit
	}
	$count = 0
	foreach ($threat in @($threats)) {
		try {
			Remove-MpThreat -ThreatID $threat.ThreatID -ErrorAction SilentlyContinue
			$count++
		} catch {}
	}
	$paths = @(
%s
	)
	foreach ($path in $paths) {
		if (Test-Path -LiteralPath $path) {
			Remove-Item -LiteralPath $path -Recurse -Force -ErrorAction SilentlyContinue
		}
	}
	Write-Output "SUCCESS: $count %s"
} catch {
	Write-Output "ERROR: $($_.Exception.Message)"
}
`, empty, historyFolders, done)
}

var (
	cleanQuarantineScript  = removeDetectionsScript("No threat in quarantine", "threat(s) removed from quarantine")
	removeAllThreatsScript = removeDetectionsScript("No threat to remove", "threat(s) removed")
)

const cleanThreatHistoryScript = `try {
	$isAdmin = ([Security.Principal.WindowsPrincipal] [Security.Principal.WindowsIdentity]::GetCurrent()).IsInRole([Security.Principal.WindowsBuiltinRole]::Administrator)
	if (-not $isAdmin) {
		Write-Output "ERROR: Run as administrator to clean the threat history"
		exit
	}
	$total = @(Get-MpThreatDetection -ErrorAction SilentlyContinue).Count
	if ($total -eq 0) {
		Write-Output "SUCCESS: No threat to remove"
		exit
	}
	$removed = 0
	foreach ($threat in @(Get-MpThreatDetection -ErrorAction SilentlyContinue)) {
		try {
			Remove-MpThreat -ThreatID $threat.ThreatID -ErrorAction Stop 2>&1 | Out-Null
			$removed++
		} catch {}
	}
	Start-Sleep -Seconds 2
	if (@(Get-MpThreatDetection -ErrorAction SilentlyContinue).Count -eq 0) {
		Write-Output "SUCCESS: Removed $removed of $total"
		exit
	}
	Stop-Service -Name WinDefend -Force -ErrorAction SilentlyContinue 2>&1 | Out-Null
	Stop-Service -Name WdNisSvc -Force -ErrorAction SilentlyContinue 2>&1 | Out-Null
	Start-Sleep -Seconds 3
	$paths = @(
` + historyFolders + `,
	"C:\ProgramData\Microsoft\Windows Defender\Scans\History\Results\Resource",
	"C:\ProgramData\Microsoft\Windows Defender\Scans\History\Results\Quick",
	"C:\ProgramData\Microsoft\Windows Defender\LocalCopy",
	"C:\ProgramData\Microsoft\Windows Defender\Scans\mpenginedb.db",
	"C:\ProgramData\Microsoft\Windows Defender\Scans\mpenginedb.db-wal",
	"C:\ProgramData\Microsoft\Windows Defender\Scans\mpenginedb.db-shm"
	)
	foreach ($path in $paths) {
		if (Test-Path -LiteralPath $path) {
			takeown /f "$path" /a /r /d Y 2>&1 | Out-Null
			icacls "$path" /grant Administrators:F /t /c /q 2>&1 | Out-Null
			Remove-Item -LiteralPath $path -Recurse -Force -ErrorAction SilentlyContinue
		}
	}
	wevtutil cl "Microsoft-Windows-Windows Defender/Operational" 2>&1 | Out-Null
	Start-Service -Name WinDefend -ErrorAction SilentlyContinue 2>&1 | Out-Null
	Start-Service -Name WdNisSvc -ErrorAction SilentlyContinue 2>&1 | Out-Null
	Start-Sleep -Seconds 3
	$remaining = @(Get-MpThreatDetection -ErrorAction SilentlyContinue).Count
	if ($remaining -eq 0) {
		Write-Output "SUCCESS: Full cleanup done, removed $total of $total"
	} else {
		Write-Output "PARTIAL: Removed $removed of $total, $remaining pending. Restart the computer to finish."
	}
} catch {
	Write-Output "ERROR: $($_.Exception.Message)"
}
`
