package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapabilityID(t *testing.T) {
	assert.Equal(t, CapabilityID("web_analysis"), NewCapabilityID("Web Analysis"))
	assert.Equal(t, CapabilityID("web_analysis"), NewCapabilityID("  web_analysis "))
	assert.Equal(t, CapabilityID("web_analysis"), NewCapabilityID("WEB-ANALYSIS"))
	assert.Equal(t, CapabilityID("data_extraction_basic"), NewCapabilityID("Data  Extraction__basic"))
	assert.Equal(t, CapabilityID(""), NewCapabilityID("   "))
}

func TestNewCapabilitySet_DedupKeepsOrder(t *testing.T) {
	got := NewCapabilitySet([]string{"Web Analysis", "data_extraction", "web_analysis", "", "Data Extraction"})
	assert.Equal(t, []CapabilityID{"web_analysis", "data_extraction"}, got)
}

func TestCapabilityID_UnmarshalJSON(t *testing.T) {
	var a Agent
	require.NoError(t, json.Unmarshal([]byte(`{"capabilities":["Web Analysis","Bug Detection"]}`), &a))
	assert.Equal(t, []CapabilityID{"web_analysis", "bug_detection"}, a.Capabilities)
}

func TestAgentValidate(t *testing.T) {
	target := "t1"
	capID := CapabilityID("web_analysis")

	idle := Agent{ID: "a1", Status: AgentIdle}
	assert.NoError(t, idle.Validate())

	engaged := Agent{ID: "a1", Status: AgentActive, CurrentTarget: &target, ActiveCapability: &capID}
	assert.NoError(t, engaged.Validate())

	halfBound := Agent{ID: "a1", Status: AgentDeployed, CurrentTarget: &target}
	assert.True(t, IsValidation(halfBound.Validate()))

	idleWithTarget := Agent{ID: "a1", Status: AgentIdle, CurrentTarget: &target}
	assert.True(t, IsValidation(idleWithTarget.Validate()))

	maintenance := Agent{ID: "a1", Status: AgentMaintenance}
	assert.NoError(t, maintenance.Validate())

	badRate := Agent{ID: "a1", Status: AgentIdle, SuccessRate: 101}
	assert.True(t, IsValidation(badRate.Validate()))

	unknown := Agent{ID: "a1", Status: "sleeping"}
	assert.True(t, IsValidation(unknown.Validate()))
}

func TestAgentEngageRelease(t *testing.T) {
	a := Agent{ID: "a1", Status: AgentIdle}
	a.Engage("t1", "web_analysis")
	require.NoError(t, a.Validate())
	assert.Equal(t, AgentActive, a.Status)
	assert.Equal(t, "t1", *a.CurrentTarget)
	assert.Equal(t, CapabilityID("web_analysis"), *a.ActiveCapability)

	a.Release()
	require.NoError(t, a.Validate())
	assert.Equal(t, AgentIdle, a.Status)
	assert.Nil(t, a.CurrentTarget)
	assert.Nil(t, a.ActiveCapability)
}

func TestAgentCloneIsDeep(t *testing.T) {
	a := Agent{ID: "a1", Capabilities: []CapabilityID{"web_analysis"}}
	a.Engage("t1", "web_analysis")

	c := a.Clone()
	c.Capabilities[0] = "changed"
	*c.CurrentTarget = "t2"

	assert.Equal(t, CapabilityID("web_analysis"), a.Capabilities[0])
	assert.Equal(t, "t1", *a.CurrentTarget)
}

func TestSupportsTargetType(t *testing.T) {
	a := Agent{TargetTypes: []string{"Browser", "file-system"}}
	assert.True(t, a.SupportsTargetType("browser"))
	assert.True(t, a.SupportsTargetType("filesystem"))
	assert.False(t, a.SupportsTargetType("network"))
}

func TestAgentDraftValidate(t *testing.T) {
	ok := AgentDraft{Name: "Scout", Collection: "Genesis", ImageURL: "https://img/1.png",
		Capabilities: []string{"Web Analysis"}, TargetTypes: []string{"browser"}}
	assert.NoError(t, ok.Validate())

	cases := map[string]func(d *AgentDraft){
		"name":         func(d *AgentDraft) { d.Name = " " },
		"collection":   func(d *AgentDraft) { d.Collection = "" },
		"image_url":    func(d *AgentDraft) { d.ImageURL = "" },
		"capabilities": func(d *AgentDraft) { d.Capabilities = []string{" "} },
		"target_types": func(d *AgentDraft) { d.TargetTypes = nil },
	}
	for field, mutate := range cases {
		d := ok
		mutate(&d)
		var vErr *ValidationError
		require.True(t, errors.As(d.Validate(), &vErr), field)
		assert.Equal(t, field, vErr.Field)
	}
}

func TestAgentPatch(t *testing.T) {
	assert.True(t, IsValidation(AgentPatch{}.Validate()))

	blank := ""
	assert.True(t, IsValidation(AgentPatch{Name: &blank}.Validate()))

	name := "Renamed"
	caps := []string{"Bug Detection"}
	p := AgentPatch{Name: &name, Capabilities: &caps}
	require.NoError(t, p.Validate())

	orig := Agent{ID: "a1", Name: "Old", Capabilities: []CapabilityID{"web_analysis"}}
	out := p.Apply(orig)
	assert.Equal(t, "Renamed", out.Name)
	assert.Equal(t, []CapabilityID{"bug_detection"}, out.Capabilities)
	assert.Equal(t, "Old", orig.Name)
}

func TestTargetDeployable(t *testing.T) {
	assert.True(t, Target{Permissions: []string{"read"}}.Deployable())
	assert.False(t, Target{}.Deployable())
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunPending.IsTerminal())
	assert.False(t, RunRunning.IsTerminal())
	assert.True(t, RunCompleted.IsTerminal())
	assert.True(t, RunFailed.IsTerminal())
	assert.True(t, RunCancelled.IsTerminal())
}

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("deploy: %w", &NetworkError{Op: "deploy", Err: errors.New("timeout")})
	assert.True(t, IsNetwork(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.True(t, IsConflict(&ConflictError{Op: "deploy", Reason: "busy"}))
	assert.True(t, IsAuth(fmt.Errorf("x: %w", &AuthError{Reason: "expired"})))
	assert.Contains(t, (&ValidationError{Field: "name", Message: "required"}).Error(), "name")
}

func TestUserMerge(t *testing.T) {
	u := User{ID: "u1", Username: "neo", Email: "neo@x", Permissions: []string{"agents:deploy"}}
	m := u.Merge(User{Email: "neo@y"})
	assert.Equal(t, "neo", m.Username)
	assert.Equal(t, "neo@y", m.Email)
	assert.True(t, m.HasPermission(PermissionDeployAgents))
	assert.False(t, m.HasPermission(PermissionManageUsers))
}

func TestAgentDraftAgent(t *testing.T) {
	a := AgentDraft{
		Name:         "  Scout ",
		Collection:   "Genesis",
		ImageURL:     "https://img/1.png",
		Capabilities: []string{"Web Analysis", "web_analysis", "Data-Extraction"},
		TargetTypes:  []string{"browser", " "},
	}.Agent()

	assert.Equal(t, "Scout", a.Name)
	assert.Equal(t, "nft", a.Type)
	assert.Equal(t, AgentIdle, a.Status)
	assert.Equal(t, []CapabilityID{"web_analysis", "data_extraction"}, a.Capabilities)
	assert.Equal(t, []string{"browser"}, a.TargetTypes)
	assert.NoError(t, a.Validate())
}
