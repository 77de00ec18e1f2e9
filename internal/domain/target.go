package domain

type TargetType string

const (
	TargetBrowser     TargetType = "browser"
	TargetFilesystem  TargetType = "filesystem"
	TargetApplication TargetType = "application"
	TargetNetwork     TargetType = "network"
	TargetTerminal    TargetType = "terminal"
	TargetDatabase    TargetType = "database"
	TargetMobile      TargetType = "mobile"
	TargetAPI         TargetType = "api"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetBrowser, TargetFilesystem, TargetApplication, TargetNetwork,
		TargetTerminal, TargetDatabase, TargetMobile, TargetAPI:
		return true
	}
	return false
}

type TargetStatus string

const (
	TargetConnected    TargetStatus = "connected"
	TargetDisconnected TargetStatus = "disconnected"
	TargetLimited      TargetStatus = "limited"
	TargetMonitoring   TargetStatus = "monitoring"
	TargetMaintenance  TargetStatus = "maintenance"
)

type Target struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Type         TargetType     `json:"type" yaml:"type"`
	Status       TargetStatus   `json:"status" yaml:"status"`
	Description  string         `json:"description,omitempty" yaml:"description"`
	Capabilities []CapabilityID `json:"capabilities" yaml:"capabilities"`
	Permissions  []string       `json:"permissions" yaml:"permissions"`
}

// Deployable: без разрешений цель нельзя выбрать для развертывания.
func (t Target) Deployable() bool {
	return len(t.Permissions) > 0
}

func (t Target) HasCapability(id CapabilityID) bool {
	for _, c := range t.Capabilities {
		if c == id {
			return true
		}
	}
	return false
}

func (t Target) Clone() Target {
	c := t
	c.Capabilities = append([]CapabilityID(nil), t.Capabilities...)
	c.Permissions = append([]string(nil), t.Permissions...)
	return c
}
