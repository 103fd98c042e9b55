package collectors

import "fmt"

// SystemInfo is the single host-identity record for a scan.
type SystemInfo struct {
	Hostname      string `json:"hostname"`
	OSName        string `json:"os_name"`
	OSVersion     string `json:"os_version"`
	KernelVersion string `json:"kernel_version"`
	Architecture  string `json:"architecture"`
	BootTimeUTC   string `json:"boot_time_utc,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	CurrentUser   string `json:"current_user,omitempty"`
}

// Process is one running process at collection time. SHA256 is the digest
// of the backing executable and is null when hashing is skipped or failed.
type Process struct {
	PID            int     `json:"pid"`
	PPID           int     `json:"ppid"`
	Name           string  `json:"name"`
	ExecutablePath string  `json:"executable_path,omitempty"`
	CommandLine    string  `json:"command_line,omitempty"`
	User           string  `json:"user,omitempty"`
	StartTimeUTC   string  `json:"start_time_utc"`
	SHA256         *string `json:"sha256"`
}

// NaturalKey is the dedup identity: pid plus start time plus image hash.
func (p Process) NaturalKey() string {
	h := ""
	if p.SHA256 != nil {
		h = *p.SHA256
	}
	return fmt.Sprintf("%d|%s|%s", p.PID, p.StartTimeUTC, h)
}

// Connection is one network endpoint pair. OwningPID and OwningProcess are
// null when socket ownership could not be resolved, or when the process
// collector did not reach a usable terminal state before cross-reference.
type Connection struct {
	Protocol      string  `json:"protocol"`
	LocalAddr     string  `json:"local_addr"`
	LocalPort     int     `json:"local_port"`
	RemoteAddr    string  `json:"remote_addr"`
	RemotePort    int     `json:"remote_port"`
	State         string  `json:"state,omitempty"`
	OwningPID     *int    `json:"owning_pid"`
	OwningProcess *string `json:"owning_process"`
}

func (c Connection) NaturalKey() string {
	pid := -1
	if c.OwningPID != nil {
		pid = *c.OwningPID
	}
	return fmt.Sprintf("%s|%s:%d|%s:%d|%d",
		c.Protocol, c.LocalAddr, c.LocalPort, c.RemoteAddr, c.RemotePort, pid)
}

// PersistenceEntry is one autostart mechanism found on the host.
type PersistenceEntry struct {
	Mechanism        string   `json:"mechanism"`
	Source           string   `json:"source"`
	Name             string   `json:"name"`
	Command          string   `json:"command,omitempty"`
	SHA256           *string  `json:"sha256"`
	IsSuspicious     bool     `json:"is_suspicious"`
	SuspicionReasons []string `json:"suspicion_reasons,omitempty"`
}

func (p PersistenceEntry) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", p.Mechanism, p.Source, p.Name)
}

// EventRecord is one log line lifted from a source log.
type EventRecord struct {
	SourceLog string `json:"source_log"`
	Sequence  int    `json:"sequence"`
	Message   string `json:"message"`
}

func (e EventRecord) NaturalKey() string {
	return fmt.Sprintf("%s|%d", e.SourceLog, e.Sequence)
}

// EventLogSet aggregates event records across every requested source log.
// DroppedCount is the number of matching entries discarded when the
// scan-wide event cap was reached.
type EventLogSet struct {
	Entries      []EventRecord `json:"entries"`
	DroppedCount int           `json:"dropped_count"`
	Sources      []string      `json:"sources"`
}

// HistoryEntry is one command lifted from a user's shell history file.
type HistoryEntry struct {
	User        string `json:"user"`
	HistoryFile string `json:"history_file"`
	Position    int    `json:"position"`
	Command     string `json:"command"`
}

// TempExecutable is an executable file found in a world-writable staging
// directory, a common marker of on-host tooling drops.
type TempExecutable struct {
	Path        string  `json:"path"`
	SizeBytes   int64   `json:"size_bytes"`
	ModifiedUTC string  `json:"modified_utc"`
	SHA256      *string `json:"sha256"`
}

// ExecutionEvidence groups artifacts that show what has been run on the host.
type ExecutionEvidence struct {
	ShellHistory    []HistoryEntry   `json:"shell_history"`
	TempExecutables []TempExecutable `json:"temp_executables"`
}
