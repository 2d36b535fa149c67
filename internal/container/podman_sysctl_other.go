// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package container

// sysctlOverrideOpts is a no-op on non-Linux platforms. On macOS/Windows, Podman
// runs inside a Linux VM (podman machine/WSL2) — CONTAINERS_CONF_OVERRIDE set on
// the host doesn't reach the VM's container runtime. Transient-error retry and
// start-level serialization in the runtime layer handle any races from the VM.
func sysctlOverrideOpts(_ string) []BaseCLIEngineOption {
	return nil
}
