package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/matcher"
)

type staticCaps []domain.Capability

func (s staticCaps) Capabilities() []domain.Capability { return s }

var caps = staticCaps{
	{ID: "web_analysis", Name: "Web Analysis", RequiredTargetCapability: "web_analysis"},
	{ID: "data_extraction", Name: "Data Extraction", RequiredTargetCapability: "data_extraction"},
	{ID: "file_analysis", Name: "File Analysis", RequiredTargetCapability: "file_analysis"},
}

var (
	scout = domain.Agent{ID: "a1", Name: "Scout", Status: domain.AgentIdle,
		Capabilities: domain.NewCapabilitySet([]string{"Web Analysis", "Data Extraction", "File Analysis"})}
	chrome = domain.Target{ID: "chrome", Name: "Chrome", Permissions: []string{"read"},
		Capabilities: domain.NewCapabilitySet([]string{"web_analysis", "data_extraction"})}
	disk = domain.Target{ID: "fs", Name: "Disk", Permissions: []string{"read"},
		Capabilities: domain.NewCapabilitySet([]string{"file_analysis"})}
	phone = domain.Target{ID: "iphone", Name: "iPhone", Capabilities: domain.NewCapabilitySet([]string{"web_analysis"})}
)

func fullySelected(t *testing.T) *Machine {
	t.Helper()
	m := New(caps, matcher.Options{})
	m.SelectAgent(scout)
	require.NoError(t, m.SelectTarget(chrome))
	require.NoError(t, m.SelectCapability("web_analysis"))
	require.NoError(t, m.SetInput("https://example.com"))
	require.Equal(t, FullySelected, m.State())
	return m
}

func TestInitialStateEmpty(t *testing.T) {
	m := New(caps, matcher.Options{})
	assert.Equal(t, Empty, m.State())
	assert.Equal(t, matcher.ReasonNothingSelected, m.Snapshot().Compatibility.Reason)
}

func TestSelectTargetRequiresAgent(t *testing.T) {
	m := New(caps, matcher.Options{})
	assert.True(t, domain.IsValidation(m.SelectTarget(chrome)))
	assert.Equal(t, Empty, m.State())
}

func TestSelectTargetWithoutPermissionsRejected(t *testing.T) {
	m := New(caps, matcher.Options{})
	m.SelectAgent(scout)
	assert.True(t, domain.IsValidation(m.SelectTarget(phone)))
	assert.Equal(t, AgentSelected, m.State())
}

func TestNewTargetClearsCapability(t *testing.T) {
	m := fullySelected(t)

	require.NoError(t, m.SelectTarget(disk))
	assert.Equal(t, AgentTargetSelected, m.State())
	snap := m.Snapshot()
	assert.Empty(t, snap.CapabilityID)
	assert.Empty(t, snap.Input)
	assert.Equal(t, "fs", snap.TargetID)
}

func TestReselectSameTargetStillClearsCapability(t *testing.T) {
	m := fullySelected(t)
	require.NoError(t, m.SelectTarget(chrome))
	assert.Equal(t, AgentTargetSelected, m.State())
}

func TestSelectAgentResetsDownstream(t *testing.T) {
	m := fullySelected(t)
	other := scout
	other.ID = "a2"
	m.SelectAgent(other)

	snap := m.Snapshot()
	assert.Equal(t, AgentSelected, snap.State)
	assert.Equal(t, "a2", snap.AgentID)
	assert.Empty(t, snap.TargetID)
	assert.Empty(t, snap.CapabilityID)
	assert.Empty(t, snap.Input)
}

func TestDeselectAgentFullReset(t *testing.T) {
	m := fullySelected(t)
	m.DeselectAgent()
	assert.Equal(t, Empty, m.State())
	snap := m.Snapshot()
	assert.Empty(t, snap.AgentID)
	assert.Empty(t, snap.TargetID)
	assert.Empty(t, snap.CapabilityID)
	assert.Empty(t, snap.Input)
}

func TestIncompatibleCapabilityRejectedWithoutStateChange(t *testing.T) {
	m := New(caps, matcher.Options{})
	m.SelectAgent(scout)
	require.NoError(t, m.SelectTarget(chrome))

	err := m.SelectCapability("file_analysis")
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, AgentTargetSelected, m.State())

	fm := fullySelected(t)
	assert.True(t, domain.IsValidation(fm.SelectCapability("file_analysis")))
	snap := fm.Snapshot()
	assert.Equal(t, domain.CapabilityID("web_analysis"), snap.CapabilityID)
	assert.Equal(t, "https://example.com", snap.Input)
}

func TestSelectCapabilityByDisplayName(t *testing.T) {
	m := New(caps, matcher.Options{})
	m.SelectAgent(scout)
	require.NoError(t, m.SelectTarget(chrome))
	require.NoError(t, m.SelectCapability("Data Extraction"))
	assert.Equal(t, domain.CapabilityID("data_extraction"), m.Snapshot().CapabilityID)
}

func TestChangingCapabilityClearsInput(t *testing.T) {
	m := fullySelected(t)
	require.NoError(t, m.SelectCapability("data_extraction"))
	assert.Equal(t, FullySelected, m.State())
	assert.Empty(t, m.Snapshot().Input)
}

func TestSelectCapabilityRequiresTarget(t *testing.T) {
	m := New(caps, matcher.Options{})
	m.SelectAgent(scout)
	assert.True(t, domain.IsValidation(m.SelectCapability("web_analysis")))
}

func TestSetInputOnlyWhenFullySelected(t *testing.T) {
	m := New(caps, matcher.Options{})
	m.SelectAgent(scout)
	assert.True(t, domain.IsValidation(m.SetInput("x")))
}

func TestSubmit(t *testing.T) {
	m := New(caps, matcher.Options{})
	_, err := m.Submit()
	assert.True(t, domain.IsValidation(err))

	m = fullySelected(t)
	require.NoError(t, m.SetInput("   "))
	_, err = m.Submit()
	assert.True(t, domain.IsValidation(err))

	require.NoError(t, m.SetInput("scan this page"))
	sub, err := m.Submit()
	require.NoError(t, err)
	assert.Equal(t, "a1", sub.Agent.ID)
	assert.Equal(t, "chrome", sub.Target.ID)
	assert.Equal(t, domain.CapabilityID("web_analysis"), sub.Capability.ID)
	assert.Equal(t, "scan this page", sub.Input)
}

func TestOptionsMarkEnabled(t *testing.T) {
	m := New(caps, matcher.Options{})
	m.SelectAgent(scout)
	require.NoError(t, m.SelectTarget(chrome))
	require.NoError(t, m.SelectCapability("web_analysis"))

	opts := m.Options()
	require.Len(t, opts, 3)
	assert.True(t, opts[0].Enabled)
	assert.True(t, opts[0].Selected)
	assert.True(t, opts[1].Enabled)
	assert.False(t, opts[2].Enabled)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(caps, matcher.Options{})
	m := r.For("u1")
	m.SelectAgent(scout)
	assert.Same(t, m, r.For("u1"))
	assert.Equal(t, Empty, r.For("u2").State())

	r.Drop("u1")
	assert.Equal(t, Empty, r.For("u1").State())
}
