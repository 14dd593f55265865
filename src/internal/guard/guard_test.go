package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPassesSecureCovenantPatterns(t *testing.T) {
	code := `pragma cashscript ^0.13.0;

contract Vault(bytes35 dest, pubkey owner) {
    function release(sig s) {
        require(checkSig(s, owner));
        require(tx.outputs.length == 1);
        require(tx.outputs[0].lockingBytecode == dest);
        require(tx.outputs[0].value == tx.inputs[this.activeInputIndex].value);
    }
}`
	reason, ok := Check(code)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestCheckRejectsHardcodedInputIndexes(t *testing.T) {
	for _, snippet := range []string{
		"require(tx.inputs[0].value > 0);",
		"require(tx.inputs[ 1 ].value > 0);",
		"require(tx.inputs[3].value > 0);",
	} {
		reason, ok := Check(snippet)
		assert.False(t, ok, snippet)
		assert.Contains(t, reason, "Hardcoded")
	}
}

func TestCheckRejectsForeignSyntax(t *testing.T) {
	cases := map[string]string{
		"require(msg.sender == owner);":      "msg.sender",
		"require(msg.value > 0);":            "msg.value",
		"mapping (address => uint) balances": "mappings",
		"emit Transfer;":                     "events",
		"modifier onlyOwner {":               "modifiers",
		"require(block.timestamp > 0);":      "tx.time",
		"revert(\"nope\");":                  "revert",
		"assembly { }":                       "assembly",
	}
	for snippet, want := range cases {
		reason, ok := Check(snippet)
		assert.False(t, ok, snippet)
		assert.Contains(t, reason, want, snippet)
	}
}

func TestCheckRejectsWrongSelfReference(t *testing.T) {
	reason, ok := Check("require(tx.outputs[0].lockingBytecode == this.lockingBytecode);")
	assert.False(t, ok)
	assert.Contains(t, reason, "this.activeBytecode")
}

func TestCheckReturnsFirstReasonOnly(t *testing.T) {
	reason, ok := Check("require(tx.inputs[0].value == msg.value);")
	assert.False(t, ok)
	assert.Contains(t, reason, "tx.inputs[0]")
}
