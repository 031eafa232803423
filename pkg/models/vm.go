/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package models holds the types shared across vmready packages.
package models

import "time"

// VMIdentity is fixed at registry load.
type VMIdentity struct {
	Name          string `json:"name"`
	VMXPath       string `json:"vmx_path"`
	CredentialRef string `json:"credential_ref,omitempty"`
}

// Phase is a position in the revert lifecycle.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseReverting         Phase = "reverting"
	PhasePoweringOn        Phase = "powering_on"
	PhaseAwaitingIP        Phase = "awaiting_ip"
	PhaseAwaitingReadiness Phase = "awaiting_readiness"
	PhaseReady             Phase = "ready"
	PhaseFailed            Phase = "failed"
)

// Operation names the flow that took a VM out of idle.
type Operation string

const (
	// OperationRevert restores a snapshot before booting.
	OperationRevert Operation = "revert"
	// OperationConnect boots the VM as it is.
	OperationConnect Operation = "connect"
)

// Terminal failure reasons recorded on VMState.Reason.
const (
	ReasonRevertError  = "revert_error"
	ReasonPowerOnError = "power_on_error"
	ReasonNoIP         = "no_ip"
	ReasonRDPTimeout   = "rdp_timeout"
)

// Readiness is the outcome of a single readiness probe.
type Readiness string

const (
	ReadinessUnknown     Readiness = "unknown"
	ReadinessNotReady    Readiness = "not_ready"
	ReadinessLikelyReady Readiness = "likely_ready"
	ReadinessReady       Readiness = "ready"
	ReadinessUnreachable Readiness = "unreachable"
)

// VMState is the mutable lifecycle record of one VM. Values are copies; the
// registry owns the live record.
type VMState struct {
	VMIdentity

	Phase     Phase     `json:"phase"`
	Reason    string    `json:"reason,omitempty"`
	Operation Operation `json:"operation,omitempty"`

	// Snapshot is the target of the current or most recent revert.
	Snapshot string `json:"snapshot,omitempty"`
	IP       string `json:"ip,omitempty"`

	LastProbe           Readiness `json:"last_probe,omitempty"`
	LastProbeAt         time.Time `json:"last_probe_at,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`

	PhaseSince time.Time `json:"phase_since"`
	// FlowStarted is when the current revert or connect was accepted.
	FlowStarted time.Time `json:"flow_started,omitzero"`
}

// Failed reports whether the VM sits in the failed phase.
func (s *VMState) Failed() bool {
	return s.Phase == PhaseFailed
}

// StopMode selects a graceful guest shutdown or a power cut.
type StopMode string

const (
	StopSoft StopMode = "soft"
	StopHard StopMode = "hard"
)

// Credential is a guest OS login.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password" sensitive:"true"`
}

// ProbeTarget is everything a readiness check needs to know about a VM.
type ProbeTarget struct {
	VM VMIdentity
	IP string
}

// ConnectionDescriptor tells a client how to open a remote desktop session.
type ConnectionDescriptor struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Username string `json:"username"`
}
