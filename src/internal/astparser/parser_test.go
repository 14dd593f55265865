package astparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vaultSource = `pragma cashscript ^0.13.0;

contract PayoutVault(bytes35 recipientLock, pubkey owner) {
    function release(sig ownerSig) {
        require(checkSig(ownerSig, owner));
        require(tx.outputs.length == 1);
        require(tx.outputs[0].lockingBytecode == recipientLock);
        require(tx.outputs[0].value == tx.inputs[this.activeInputIndex].value);
    }
}
`

func TestParseContractHeader(t *testing.T) {
	f := Parse(vaultSource)

	assert.Equal(t, "PayoutVault", f.ContractName)
	require.Len(t, f.ConstructorParams, 2)
	assert.Equal(t, Param{Type: "bytes35", Name: "recipientLock"}, f.ConstructorParams[0])
	assert.Equal(t, Param{Type: "pubkey", Name: "owner"}, f.ConstructorParams[1])
	assert.Len(t, f.PubKeyParams(), 1)
}

func TestParseFunctionsAndGuards(t *testing.T) {
	f := Parse(vaultSource)

	require.Len(t, f.Functions, 1)
	assert.Equal(t, "release", f.Functions[0].Name)
	assert.Equal(t, 4, f.GuardCount())
	assert.Len(t, f.ValidationsIn("release"), 4)
	assert.Empty(t, f.ValidationsIn("missing"))
}

func TestParseValidationFlags(t *testing.T) {
	f := Parse(vaultSource)
	guards := f.ValidationsIn("release")
	require.Len(t, guards, 4)

	count := guards[1]
	assert.True(t, count.ValidatesOutputCount)
	require.Len(t, count.Comparisons, 1)
	assert.Equal(t, Comparison{Left: "tx.outputs.length", Op: "==", Right: "1"}, count.Comparisons[0])

	anchor := guards[2]
	assert.True(t, anchor.ValidatesLockingBytecode)
	require.NotNil(t, anchor.LockingIndex)
	assert.Equal(t, 0, *anchor.LockingIndex)

	value := guards[3]
	require.NotNil(t, value.ValueIndex)
	assert.Equal(t, 0, *value.ValueIndex)
	assert.True(t, value.ValidatesOwnPosition, "value anchor mentions this.activeInputIndex with a comparison")

	assert.True(t, f.HasOutputCountBound())
	assert.True(t, f.HasPositionCheck())
	assert.True(t, f.ValidatesLockingBytecodeFor("release", 0))
	assert.False(t, f.ValidatesLockingBytecodeFor("release", 1))
}

func TestParseOutputRefs(t *testing.T) {
	f := Parse(vaultSource)

	var props []string
	for _, ref := range f.OutputRefs {
		assert.Equal(t, 0, ref.Index)
		assert.Equal(t, "release", ref.Function)
		props = append(props, ref.Property)
	}
	assert.ElementsMatch(t, []string{"lockingBytecode", "value"}, props)
}

func TestParseCheckSigCalls(t *testing.T) {
	src := `contract DualAuth(pubkey alice, pubkey bob) {
    function spend(sig s) {
        require(checkSig(s, alice));
        require(checkSig(s, bob));
    }
}`
	f := Parse(src)
	require.Len(t, f.CheckSigCalls, 2)
	assert.Equal(t, CheckSigCall{Sig: "s", PubKey: "alice", Function: "spend"}, f.CheckSigCalls[0])
	assert.Equal(t, CheckSigCall{Sig: "s", PubKey: "bob", Function: "spend"}, f.CheckSigCalls[1])
}

func TestParseArithmetic(t *testing.T) {
	src := `contract Splitter(int shares) {
    function split() {
        int part = tx.inputs[this.activeInputIndex].value / shares;
        int rest = part % shares; // comment with / slash must not count
        require(part > 0);
        require(rest >= 0);
    }
}`
	f := Parse(src)
	require.Len(t, f.ArithmeticOps, 2)
	assert.Equal(t, "divide", f.ArithmeticOps[0].Op)
	assert.Equal(t, "shares", f.ArithmeticOps[0].Divisor)
	assert.Equal(t, "modulo", f.ArithmeticOps[1].Op)
}

func TestParseTokenIndexes(t *testing.T) {
	src := `contract Gate(bytes32 cat) {
    function transfer() {
        require(tx.outputs[1].tokenCategory == cat);
        require(tx.outputs[1].tokenAmount == tx.inputs[this.activeInputIndex].tokenAmount);
    }
}`
	f := Parse(src)
	guards := f.ValidationsIn("transfer")
	require.Len(t, guards, 2)
	require.NotNil(t, guards[0].TokenCategoryIndex)
	assert.Equal(t, 1, *guards[0].TokenCategoryIndex)
	require.NotNil(t, guards[1].TokenAmountIndex)
	assert.Equal(t, 1, *guards[1].TokenAmountIndex)
}

func TestParseStatefulMarker(t *testing.T) {
	stateful := `contract Counter(bytes32 stateCommit) {
    function advance(bytes newState) {
        require(hash256(newState) == stateCommit);
    }
}`
	assert.True(t, Parse(stateful).IsStateful)
	assert.False(t, Parse(vaultSource).IsStateful)
}

func TestParseNeverFails(t *testing.T) {
	for _, src := range []string{"", "garbage", "contract Broken(", "function orphan() {"} {
		f := Parse(src)
		require.NotNil(t, f)
		assert.Equal(t, src, f.Source())
	}
}

func TestParseComparisonsSplitsConnectors(t *testing.T) {
	f := Parse(`contract C() {
    function run(int a, int b) {
        require(a >= 1 && b != 2);
    }
}`)
	guards := f.ValidationsIn("run")
	require.Len(t, guards, 1)
	require.Len(t, guards[0].Comparisons, 2)
	assert.Equal(t, Comparison{Left: "a", Op: ">=", Right: "1"}, guards[0].Comparisons[0])
	assert.Equal(t, Comparison{Left: "b", Op: "!=", Right: "2"}, guards[0].Comparisons[1])
}
