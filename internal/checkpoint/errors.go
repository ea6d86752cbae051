package checkpoint

import "github.com/haasonsaas/orchestrator/internal/engineerr"

const component = "checkpoint"

// ErrNotFound is returned by Store.Get when no snapshot has been stored for
// a session.
var ErrNotFound = engineerr.New(engineerr.KindCheckpoint, component, "no snapshot stored for session")
