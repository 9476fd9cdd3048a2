package generr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError_Message(t *testing.T) {
	err := NewConfigurationError("parameters.conversion_rate", "must be in [0,1], got %v", 1.5)
	assert.Equal(t, "CONFIGURATION: parameters.conversion_rate: must be in [0,1], got 1.5", err.Error())

	multi := &ConfigurationError{Message: "invalid config", Problems: []string{"a", "b"}}
	assert.Equal(t, "CONFIGURATION: invalid config [a; b]", multi.Error())
}

func TestMissingRuleError_IsConfiguration(t *testing.T) {
	err := fmt.Errorf("customer CUST-00001: %w", &MissingRuleError{Rule: "propensity", Channel: "Phone", Tier: "Gold"})

	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, CodeMissingRule, CodeOf(err))
	assert.Contains(t, err.Error(), `rule "propensity"`)
}

func TestSimulationInvariantError_SortedDetails(t *testing.T) {
	err := &SimulationInvariantError{
		Invariant:  "non-negative cumulative spend",
		CustomerID: "CUST-00007",
		Details:    map[string]string{"spend": "-1.00", "order": "ORD-00007-0001"},
	}
	assert.Equal(t,
		"SIMULATION_INVARIANT: non-negative cumulative spend (customer=CUST-00007) order=ORD-00007-0001 spend=-1.00",
		err.Error())
	assert.True(t, IsInvariantError(fmt.Errorf("wrapped: %w", err)))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{"configuration", &ConfigurationError{Message: "x"}, CodeConfiguration},
		{"invariant", &SimulationInvariantError{Invariant: "x"}, CodeSimulationInvariant},
		{"integrity", &IntegrityError{Checks: []string{"pk.orders"}}, CodeIntegrity},
		{"statistical", &StatisticalWarning{Check: "conversion_rate"}, CodeStatistical},
		{"unknown", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(fmt.Errorf("ctx: %w", tt.err)))
		})
	}
}
