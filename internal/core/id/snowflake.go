package id

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// ErrAlreadyConfigured is returned when the generator is configured twice with different nodes.
var ErrAlreadyConfigured = errors.New("snowflake generator already configured")

var (
	nodeMu sync.Mutex
	node   *snowflake.Node
	nodeID int64
)

// ConfigureNode initializes the process-wide snowflake generator.
// Must be called once at startup, before any NextID call. Calling it again with the
// same node is a no-op; a different node returns ErrAlreadyConfigured.
func ConfigureNode(n int64) error {
	nodeMu.Lock()
	defer nodeMu.Unlock()

	if node != nil {
		if nodeID == n {
			return nil
		}
		return fmt.Errorf("%w: node %d, requested %d", ErrAlreadyConfigured, nodeID, n)
	}

	created, err := snowflake.NewNode(n)
	if err != nil {
		return fmt.Errorf("create snowflake node %d: %w", n, err)
	}
	node = created
	nodeID = n
	return nil
}

// NextID returns a new snowflake id. Safe for concurrent use.
// Panics if ConfigureNode was never called - this is a startup wiring bug.
func NextID() int64 {
	nodeMu.Lock()
	n := node
	nodeMu.Unlock()

	if n == nil {
		panic("id: snowflake generator is not configured, call id.ConfigureNode at startup")
	}
	return n.Generate().Int64()
}

// Node returns the configured node id and whether the generator is configured.
func Node() (int64, bool) {
	nodeMu.Lock()
	defer nodeMu.Unlock()
	return nodeID, node != nil
}
