package sge

import "testing"

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    JobState
		to      JobState
		wantErr bool
	}{
		// Valid transitions
		{"Queued to Running", StateQueued, StateRunning, false},
		{"Running to Queued (requeue)", StateRunning, StateQueued, false},
		{"Running to Transferring", StateRunning, StateTransferring, false},
		{"Running to Unknown", StateRunning, StateUnknown, false},
		{"Queued to Failed", StateQueued, StateFailed, false},
		{"Unknown to Failed", StateUnknown, StateFailed, false},
		{"Unknown to ReconciledDone", StateUnknown, StateReconciledDone, false},

		// Invalid transitions
		{"Queued to ReconciledDone", StateQueued, StateReconciledDone, true},
		{"Running to ReconciledDone", StateRunning, StateReconciledDone, true},
		{"Failed to Running", StateFailed, StateRunning, true},
		{"Failed to ReconciledDone", StateFailed, StateReconciledDone, true},
		{"ReconciledDone to anything", StateReconciledDone, StateQueued, true},
		{"Unknown back to Running", StateUnknown, StateRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%v, %v) error = %v, wantErr %v",
					tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestIsTerminalState(t *testing.T) {
	tests := []struct {
		state    JobState
		terminal bool
	}{
		{StateFailed, true},
		{StateReconciledDone, true},
		{StateQueued, false},
		{StateRunning, false},
		{StateTransferring, false},
		{StateUnknown, false},
	}

	for _, tt := range tests {
		if got := IsTerminalState(tt.state); got != tt.terminal {
			t.Errorf("IsTerminalState(%v) = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}
