// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import "fmt"

// Access is a set of permissions held by one side (host or kernel).
type Access uint8

// Access flags.
const (
	// NoAccess denies both reads and writes.
	NoAccess Access = 0

	// ReadOnly permits reads.
	ReadOnly Access = 1

	// WriteOnly permits writes.
	WriteOnly Access = 2

	// ReadWrite permits reads and writes.
	ReadWrite = ReadOnly | WriteOnly
)

// Readable reports whether the access permits reads.
func (a Access) Readable() bool { return a&ReadOnly != 0 }

// Writable reports whether the access permits writes.
func (a Access) Writable() bool { return a&WriteOnly != 0 }

// String returns a human-readable name for the access.
func (a Access) String() string {
	switch a {
	case NoAccess:
		return "NoAccess"
	case ReadOnly:
		return "ReadOnly"
	case WriteOnly:
		return "WriteOnly"
	case ReadWrite:
		return "ReadWrite"
	default:
		return fmt.Sprintf("Access(%d)", uint8(a))
	}
}

// AccessPolicy holds the host and kernel permissions of a surface.
// The host permission governs transfers between the surface and host
// memory. The kernel permission is forwarded to backends as a usage hint.
type AccessPolicy struct {
	Host   Access
	Kernel Access
}

// Common policies.
var (
	// FullAccess lets both the host and kernels read and write.
	FullAccess = AccessPolicy{Host: ReadWrite, Kernel: ReadWrite}

	// KernelOnly hides the surface from the host.
	KernelOnly = AccessPolicy{Host: NoAccess, Kernel: ReadWrite}

	// HostReadOnly lets kernels produce results the host can only read.
	HostReadOnly = AccessPolicy{Host: ReadOnly, Kernel: ReadWrite}

	// HostWriteOnly lets the host upload inputs kernels can only read.
	HostWriteOnly = AccessPolicy{Host: WriteOnly, Kernel: ReadOnly}
)

// Policy builds an AccessPolicy.
func Policy(host, kernel Access) AccessPolicy {
	return AccessPolicy{Host: host, Kernel: kernel}
}

// HostReadable reports whether the host may read the surface.
func (p AccessPolicy) HostReadable() bool { return p.Host.Readable() }

// HostWritable reports whether the host may write the surface.
func (p AccessPolicy) HostWritable() bool { return p.Host.Writable() }

// String returns a human-readable description of the policy.
func (p AccessPolicy) String() string {
	return fmt.Sprintf("host=%s kernel=%s", p.Host, p.Kernel)
}

// checkHostReadable fails with ErrAccessDenied when the host may not read s.
func checkHostReadable(op string, s *Surface) error {
	if !s.policy.HostReadable() {
		return fmt.Errorf("%s: surface %s: %w (host access %s, read required)",
			op, s.label(), ErrAccessDenied, s.policy.Host)
	}
	return nil
}

// checkHostWritable fails with ErrAccessDenied when the host may not write s.
func checkHostWritable(op string, s *Surface) error {
	if !s.policy.HostWritable() {
		return fmt.Errorf("%s: surface %s: %w (host access %s, write required)",
			op, s.label(), ErrAccessDenied, s.policy.Host)
	}
	return nil
}
