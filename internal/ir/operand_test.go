package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperandConstructors(t *testing.T) {
	assert.True(t, NullOperand().IsNull())
	assert.Equal(t, OperandVariable, VarOperand(3).Kind)
	assert.Equal(t, OperandImmediate, ImmOperand(7).Kind)
	assert.Equal(t, OperandLabel, LabelOperand("L1").Kind)
}

func TestGlobalOperandRoundTrip(t *testing.T) {
	o := GlobalOperand(5)
	assert.True(t, o.IsGlobal())
	assert.Equal(t, 5, o.GlobalSlot())
	assert.Equal(t, -6, o.Var)
}

func TestLocalVariableIsNotGlobal(t *testing.T) {
	o := VarOperand(5)
	assert.False(t, o.IsGlobal())
}

func TestOperandString(t *testing.T) {
	assert.Equal(t, "-", NullOperand().String())
	assert.Equal(t, "r2", VarOperand(2).String())
	assert.Equal(t, "g0", GlobalOperand(0).String())
	assert.Equal(t, "42", ImmOperand(42).String())
	assert.Equal(t, "L1", LabelOperand("L1").String())
}
