// Package callgen builds the synthetic calls pushed to CRM viewers: the one-off
// softphone test call after a viewer joins and the periodic demo calls.
package callgen

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// DefaultCalledNumber is the hotline every synthetic call dials
const DefaultCalledNumber = "1900"

// DemoCustomers are the profiles periodic demo calls pick from
var DemoCustomers = []types.CustomerInfo{
	{FullName: "Nguyễn Văn Demo 1", PhoneNumber: "+84901111111", Email: "demo1@example.com", CIF: "DEMO001"},
	{FullName: "Trần Thị Demo 2", PhoneNumber: "+84902222222", Email: "demo2@example.com", CIF: "DEMO002"},
	{FullName: "Lê Minh Demo 3", PhoneNumber: "+84903333333", Email: "demo3@example.com", CIF: "DEMO003"},
}

var demoAgentNames = []string{"Agent Demo 1", "Agent Demo 2", "Agent Demo 3"}

// TestCustomer is the caller of the softphone test call
var TestCustomer = types.CustomerInfo{
	ID:          json.RawMessage("1"),
	FullName:    "Nguyễn Văn Test",
	PhoneNumber: "+84987654321",
	Email:       "test@example.com",
	CIF:         "CIF123456789",
}

// Generator creates synthetic ringing calls.
type Generator struct {
	mu  sync.Mutex
	ids *IDGenerator
	rng *rand.Rand
}

// NewGenerator creates a Generator; seed drives the customer and agent picks
func NewGenerator(ids *IDGenerator, seed int64) *Generator {
	return &Generator{
		ids: ids,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// IDs exposes the id generator shared with the router
func (g *Generator) IDs() *IDGenerator {
	return g.ids
}

// TestCall builds the SOFTPHONE_CALL pushed once to a viewer after it joins
func (g *Generator) TestCall(connID string, now time.Time) types.Call {
	customer := TestCustomer
	return types.Call{
		CallID:       g.ids.New(types.PrefixSoftphone),
		CallerNumber: customer.PhoneNumber,
		CalledNumber: DefaultCalledNumber,
		CustomerInfo: &customer,
		AssignedAgent: &types.AssignedAgent{
			ID:       "1",
			UserID:   "1",
			FullName: "Admin User",
			Status:   types.StatusAvailable,
		},
		Status:    types.CallStatusRinging,
		Source:    types.SourceSoftphone,
		StartTime: now,
		ConnID:    connID,
	}
}

// DemoCall builds one DEMO_CALL with a random demo customer
func (g *Generator) DemoCall(connID string, now time.Time) types.Call {
	g.mu.Lock()
	customer := DemoCustomers[g.rng.Intn(len(DemoCustomers))]
	customer.ID = json.RawMessage(strconv.Itoa(g.rng.Intn(1000) + 1))
	agentN := g.rng.Intn(len(demoAgentNames))
	g.mu.Unlock()

	agentID := strconv.Itoa(agentN + 1)
	return types.Call{
		CallID:       g.ids.New(types.PrefixDemo),
		CallerNumber: customer.PhoneNumber,
		CalledNumber: DefaultCalledNumber,
		CustomerInfo: &customer,
		AssignedAgent: &types.AssignedAgent{
			ID:       agentID,
			UserID:   agentID,
			FullName: demoAgentNames[agentN],
			Status:   types.StatusAvailable,
		},
		Status:    types.CallStatusRinging,
		Source:    types.SourceSoftphone,
		StartTime: now,
		ConnID:    connID,
	}
}
