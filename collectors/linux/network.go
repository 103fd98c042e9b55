package linux

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"coldsnap/collectors"
)

// NetworkCollector reads the kernel socket tables. Owning-process fields
// stay null when socket ownership cannot be resolved or when the process
// collector did not complete before cross-reference.
type NetworkCollector struct {
	ProcRoot string
}

func NewNetworkCollector() *NetworkCollector { return &NetworkCollector{ProcRoot: "/proc"} }

func (c *NetworkCollector) Kind() collectors.Kind { return collectors.KindNetwork }

var tcpStates = map[string]string{
	"01": "ESTABLISHED", "02": "SYN_SENT", "03": "SYN_RECV",
	"04": "FIN_WAIT1", "05": "FIN_WAIT2", "06": "TIME_WAIT",
	"07": "CLOSE", "08": "CLOSE_WAIT", "09": "LAST_ACK",
	"0A": "LISTEN", "0B": "CLOSING",
}

func (c *NetworkCollector) Collect(ctx context.Context, rc collectors.RunContext) (*collectors.PartialResult, error) {
	source := string(c.Kind())
	owners := c.socketOwners(ctx)

	tables := []struct {
		file  string
		proto string
	}{
		{"tcp", "tcp"}, {"tcp6", "tcp6"}, {"udp", "udp"}, {"udp6", "udp6"},
	}

	var conns []collectors.Connection
	seen := make(map[string]bool)
	readAny := false

	for _, table := range tables {
		if ctx.Err() != nil {
			break
		}
		f, err := os.Open(filepath.Join(c.ProcRoot, "net", table.file))
		if err != nil {
			continue
		}
		readAny = true

		sc := bufio.NewScanner(f)
		sc.Scan() // header
		for sc.Scan() {
			conn, err := parseSocketLine(sc.Text(), table.proto)
			if err != nil {
				rc.Log.Warnf(source, "%s table: %v", table.proto, err)
				continue
			}
			if pid, ok := owners[conn.inode]; ok {
				conn.c.OwningPID = &pid
				if name, ok := rc.Processes[pid]; ok {
					conn.c.OwningProcess = &name
				}
			}
			if key := conn.c.NaturalKey(); !seen[key] {
				seen[key] = true
				conns = append(conns, conn.c)
			}
		}
		f.Close()
	}

	if !readAny {
		return nil, fmt.Errorf("network tables unavailable under %s", filepath.Join(c.ProcRoot, "net"))
	}

	status := collectors.StatusComplete
	if ctx.Err() != nil {
		status = collectors.StatusTruncated
		rc.Log.Warnf(source, "socket walk interrupted by deadline, %d connections captured", len(conns))
	}
	return &collectors.PartialResult{
		Kind:        c.Kind(),
		Status:      status,
		Connections: conns,
	}, nil
}

type socketLine struct {
	c     collectors.Connection
	inode uint64
}

func parseSocketLine(line, proto string) (socketLine, error) {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return socketLine{}, fmt.Errorf("short socket line (%d fields)", len(fields))
	}

	local, localPort, err := parseSocketAddr(fields[1])
	if err != nil {
		return socketLine{}, fmt.Errorf("local address %q: %w", fields[1], err)
	}
	remote, remotePort, err := parseSocketAddr(fields[2])
	if err != nil {
		return socketLine{}, fmt.Errorf("remote address %q: %w", fields[2], err)
	}
	inode, err := strconv.ParseUint(fields[9], 10, 64)
	if err != nil {
		return socketLine{}, fmt.Errorf("inode %q: %w", fields[9], err)
	}

	state := ""
	if strings.HasPrefix(proto, "tcp") {
		state = tcpStates[fields[3]]
	}

	return socketLine{
		c: collectors.Connection{
			Protocol:   proto,
			LocalAddr:  local,
			LocalPort:  localPort,
			RemoteAddr: remote,
			RemotePort: remotePort,
			State:      state,
		},
		inode: inode,
	}, nil
}

// parseSocketAddr decodes the kernel's little-endian hex "ADDR:PORT" form.
func parseSocketAddr(s string) (string, int, error) {
	addrHex, portHex, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, fmt.Errorf("missing port separator")
	}
	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return "", 0, err
	}
	raw, err := hex.DecodeString(addrHex)
	if err != nil {
		return "", 0, err
	}

	switch len(raw) {
	case 4:
		ip := net.IPv4(raw[3], raw[2], raw[1], raw[0])
		return ip.String(), int(port), nil
	case 16:
		// Four 32-bit groups, each little-endian.
		ip := make(net.IP, 16)
		for g := 0; g < 4; g++ {
			binary.BigEndian.PutUint32(ip[g*4:], binary.LittleEndian.Uint32(raw[g*4:]))
		}
		return ip.String(), int(port), nil
	default:
		return "", 0, fmt.Errorf("unexpected address width %d", len(raw))
	}
}

// socketOwners maps socket inodes to owning pids by walking proc fd links.
// Best-effort: unreadable fd dirs (permissions, exited processes) are skipped.
func (c *NetworkCollector) socketOwners(ctx context.Context) map[uint64]int {
	owners := make(map[uint64]int)
	entries, err := os.ReadDir(c.ProcRoot)
	if err != nil {
		return owners
	}
	for _, ent := range entries {
		if ctx.Err() != nil {
			return owners
		}
		pid, err := strconv.Atoi(ent.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join(c.ProcRoot, ent.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			inodeStr, ok := strings.CutPrefix(target, "socket:[")
			if !ok {
				continue
			}
			inode, err := strconv.ParseUint(strings.TrimSuffix(inodeStr, "]"), 10, 64)
			if err != nil {
				continue
			}
			if _, taken := owners[inode]; !taken {
				owners[inode] = pid
			}
		}
	}
	return owners
}
