package deployment

import "time"

// AgentConfig is the behavior configuration snapshotted into a worker token.
type AgentConfig struct {
	BusinessName         string `json:"businessName"`
	CustomInstructions   string `json:"customInstructions,omitempty"`
	InitiateConversation bool   `json:"initiateConversation"`
	InitialMessage       string `json:"initialMessage,omitempty"`
	DocumentNamespace    string `json:"documentNamespace,omitempty"`
}

// Deployment is one agent's live telephony binding as recorded locally.
//
// Invariants:
// - Deployed=false implies SIPTrunkID is empty.
// - A telephony deployment (phone number supplied) implies SIPTrunkID is the gateway trunk id.
// - Records are only written at the end of a Deploy or Cleanup flow, never mid-flow.
type Deployment struct {
	AgentID     string `json:"agent_id" db:"id"`
	AccountID   string `json:"account_id" db:"account_id"`
	PhoneNumber string `json:"phone_number,omitempty" db:"phone_number"`

	Deployed       bool       `json:"deployed" db:"deployed"`
	SIPTrunkID     string     `json:"sip_trunk_id,omitempty" db:"sip_trunk_id"`
	LastDeployedAt *time.Time `json:"last_deployed_at,omitempty" db:"last_deployed_at"`

	Config AgentConfig `json:"config"`
}

// Binding is the ephemeral carrier/gateway pairing built during one Deploy.
// Only GatewayTrunkID is persisted.
type Binding struct {
	PhoneNumber     string
	PhoneNumberSID  string
	CarrierTrunkSID string
	OriginationURI  string
	GatewayTrunkID  string
	DispatchRuleID  string
}

type DeployRequest struct {
	// AccountID scopes the agent lookup when set.
	AccountID string

	AgentID string
	// PhoneNumber is optional. Without it no trunk is provisioned.
	PhoneNumber string
	Config      AgentConfig
}

type DeployResult struct {
	WorkerToken    string `json:"workerToken"`
	GatewayTrunkID string `json:"sipTrunkId,omitempty"`
}

type CleanupRequest struct {
	AccountID string
	AgentID   string
}

const StatusCleanedUp = "cleaned up"

type CleanupResult struct {
	Status string `json:"status"`
}
