package app

import (
	"fmt"
	"net"
	"strings"
)

// defaultLockAddr is bound for the life of the process. Two instances
// polling the same bot account fight over updates, so a second instance on
// the same host must fail fast instead of starting.
const defaultLockAddr = "127.0.0.1:17337"

type instanceLock struct {
	ln net.Listener
}

func acquireInstanceLock(addr string) (*instanceLock, error) {
	if strings.TrimSpace(addr) == "" {
		addr = defaultLockAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("instance lock %s: another instance may be running: %w", addr, err)
	}
	return &instanceLock{ln: ln}, nil
}

func (l *instanceLock) Release() error {
	if l == nil || l.ln == nil {
		return nil
	}
	err := l.ln.Close()
	l.ln = nil
	return err
}
