package types

// CallOutcome is the terminal status a call record was archived with
type CallOutcome string

const (
	OutcomeEnded    CallOutcome = "ended"
	OutcomeRejected CallOutcome = "rejected"
	OutcomeFailed   CallOutcome = "failed"
)

// CallRecord represents a terminated call for DynamoDB persistence
type CallRecord struct {
	DateKey       string      `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	CallID        string      `json:"callId" dynamodbav:"CallID"`   // sort key
	CallerNumber  string      `json:"callerNumber" dynamodbav:"CallerNumber"`
	CalledNumber  string      `json:"calledNumber,omitempty" dynamodbav:"CalledNumber,omitempty"`
	AgentID       string      `json:"agentId,omitempty" dynamodbav:"AgentID,omitempty"`
	Source        CallSource  `json:"source" dynamodbav:"Source"`
	Outcome       CallOutcome `json:"outcome" dynamodbav:"Outcome"`
	EndReason     string      `json:"endReason" dynamodbav:"EndReason"`
	EndedBy       string      `json:"endedBy,omitempty" dynamodbav:"EndedBy,omitempty"`
	StartTime     string      `json:"startTime" dynamodbav:"StartTime"`                             // RFC3339
	ConnectedTime string      `json:"connectedTime,omitempty" dynamodbav:"ConnectedTime,omitempty"` // RFC3339
	EndTime       string      `json:"endTime" dynamodbav:"EndTime"`                                 // RFC3339
	Duration      int         `json:"duration" dynamodbav:"Duration"`                               // seconds
}
